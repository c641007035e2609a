package auth

import "strings"

// Capability se resuelve una sola vez al autenticar y viaja en el contexto del request.
type Capability string

const (
	CapabilityPatient Capability = "patient"
	CapabilityDoctor  Capability = "doctor"
	CapabilityFamily  Capability = "family"
)

// Claims representa la información extraída del token.
type Claims struct {
	UserID       string
	Email        string
	Capabilities []Capability
}

func HasCapability(c Claims, capability Capability) bool {
	for _, have := range c.Capabilities {
		if have == capability {
			return true
		}
	}
	return false
}

// ParseCapabilities acepta CSV ("doctor,family") e ignora valores desconocidos.
func ParseCapabilities(raw string) []Capability {
	out := make([]Capability, 0)
	seen := map[Capability]struct{}{}
	for _, p := range strings.Split(raw, ",") {
		c := Capability(strings.ToLower(strings.TrimSpace(p)))
		switch c {
		case CapabilityPatient, CapabilityDoctor, CapabilityFamily:
		default:
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
