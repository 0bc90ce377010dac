package domain

// Well-known inventory attribute names.
const (
	AttrPrivateIP = "Private IP"
	AttrSSHPort   = "SSH_Port"
	AttrWWWPort   = "WWW_Port"
)

// Live status values written on deployed-app resources.
const (
	LiveStatusOnline  = "Online"
	LiveStatusOffline = "Offline"
)

// Resource is an inventory record owned by the hosting platform.
type Resource struct {
	Name       string            `json:"name"`
	Address    string            `json:"address"`
	LiveStatus string            `json:"live_status,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// HostResource is the engine host the command runs against.
type HostResource struct {
	Name    string
	Address string
}

// Target is the deployed-app resource a post-deploy command acts on.
type Target struct {
	Name string
	UID  string
}

// ExecContext carries what the platform resolves before invoking a command.
type ExecContext struct {
	ReservationID string
	Host          HostResource
	Target        Target
}
