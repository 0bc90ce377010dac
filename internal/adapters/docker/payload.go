package docker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
)

// CreatePayload is the body of POST /containers/create.
type CreatePayload struct {
	Cmd          []string    `json:"Cmd"`
	Env          []string    `json:"Env"`
	ExposedPorts nat.PortSet `json:"ExposedPorts,omitempty"`
	Image        string      `json:"Image"`
	HostConfig   HostConfig  `json:"HostConfig"`
}

// HostConfig is the host-configuration section of CreatePayload.
type HostConfig struct {
	PortBindings    nat.PortMap `json:"PortBindings,omitempty"`
	PublishAllPorts bool        `json:"PublishAllPorts"`
}

// NewCreatePayload turns an image, a comma separated "name=value" list and a
// comma separated port list into the engine's create payload.
// Blank env and port lists are valid.
func NewCreatePayload(image, rawEnv, rawPorts string) (CreatePayload, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return CreatePayload{}, &domain.ValidationError{Field: "image", Value: image, Reason: "must not be empty"}
	}

	payload := CreatePayload{
		Cmd:        []string{},
		Env:        parseEnv(rawEnv),
		Image:      image,
		HostConfig: HostConfig{PublishAllPorts: true},
	}

	ports, err := parsePorts(rawPorts)
	if err != nil {
		return CreatePayload{}, err
	}
	if len(ports) > 0 {
		payload.ExposedPorts = make(nat.PortSet, len(ports))
		payload.HostConfig.PortBindings = make(nat.PortMap, len(ports))
		for _, port := range ports {
			payload.ExposedPorts[port] = struct{}{}
			// empty HostPort lets the engine pick one
			payload.HostConfig.PortBindings[port] = []nat.PortBinding{{HostPort: ""}}
		}
	}
	return payload, nil
}

// BuildCreatePayload is NewCreatePayload followed by serialization.
func BuildCreatePayload(image, rawEnv, rawPorts string) ([]byte, error) {
	payload, err := NewCreatePayload(image, rawEnv, rawPorts)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode create payload: %w", err)
	}
	return body, nil
}

func splitList(raw string) []string {
	var out []string
	for _, token := range strings.Split(raw, ",") {
		if token = strings.TrimSpace(token); token != "" {
			out = append(out, token)
		}
	}
	return out
}

func parseEnv(raw string) []string {
	env := []string{}
	for _, token := range splitList(raw) {
		// a token made only of quotes is as blank as an empty one
		if token = unquote(token); strings.TrimSpace(token) != "" {
			env = append(env, token)
		}
	}
	return env
}

// unquote drops quotes a user typed around a token. The serializer adds
// exactly one pair back, so each end is fixed on its own. A trailing quote is
// only dropped when it is unbalanced, which keeps values like A="x y" intact.
func unquote(token string) string {
	token = strings.TrimPrefix(token, `"`)
	if strings.HasSuffix(token, `"`) && strings.Count(token, `"`)%2 == 1 {
		token = strings.TrimSuffix(token, `"`)
	}
	return token
}

func parsePorts(raw string) ([]nat.Port, error) {
	var ports []nat.Port
	for _, token := range splitList(raw) {
		number, err := nat.ParsePort(token)
		if err != nil || number == 0 {
			return nil, &domain.ValidationError{Field: "port", Value: token, Reason: "must be a port number between 1 and 65535"}
		}
		port, err := nat.NewPort("tcp", strconv.Itoa(number))
		if err != nil {
			return nil, &domain.ValidationError{Field: "port", Value: token, Reason: err.Error()}
		}
		ports = append(ports, port)
	}
	return ports, nil
}
