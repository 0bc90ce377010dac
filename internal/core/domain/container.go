package domain

import (
	"encoding/json"

	"github.com/docker/go-connections/nat"
)

// DeployRequest is the immutable input of a deploy call.
// Env and Ports keep the raw comma separated form the platform hands over.
type DeployRequest struct {
	AppName string
	Image   string
	Env     string
	Ports   string
}

// DeployedInstance is what a successful deploy hands back to the platform.
// EngineContainerID is the only handle used by later lifecycle calls.
type DeployedInstance struct {
	EngineContainerID string `json:"vm_uuid"`
	InstanceName      string `json:"vm_name"`
	OwnerResourceName string `json:"cloud_provider_resource_name"`
}

// ContainerState is the subset of the engine's inspect document the adapter reads.
// Raw keeps the full document for callers that want to pass it through.
type ContainerState struct {
	ID    string `json:"Id"`
	Name  string `json:"Name"`
	Image string `json:"Image"`
	State struct {
		Status  string `json:"Status"`
		Running bool   `json:"Running"`
	} `json:"State"`
	Node struct {
		IP   string `json:"IP"`
		Name string `json:"Name"`
	} `json:"Node"`
	NetworkSettings struct {
		IPAddress string      `json:"IPAddress"`
		Ports     nat.PortMap `json:"Ports"`
	} `json:"NetworkSettings"`

	Raw json.RawMessage `json:"-"`
}

// HostPort returns the first host port the engine bound for a container port.
func (s ContainerState) HostPort(port nat.Port) (string, bool) {
	bindings, ok := s.NetworkSettings.Ports[port]
	if !ok || len(bindings) == 0 {
		return "", false
	}
	return bindings[0].HostPort, true
}

// AttributeUpdate is one (name, value) pair to be written on an inventory resource.
type AttributeUpdate struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NetworkBinding is the result of one network resolution. It is never cached.
type NetworkBinding struct {
	NodeIP     string            `json:"node_ip"`
	Address    string            `json:"address"`
	Attributes []AttributeUpdate `json:"attributes"`
}

// Attribute returns the value of the named attribute update, if present.
func (b NetworkBinding) Attribute(name string) (string, bool) {
	for _, a := range b.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}
