package connectivity

import "fmt"

type Status int

const (
	Uninitialized Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "error"
	default:
		return "uninitialized"
	}
}

// Kind — категория отказа удалённого хранилища.
type Kind string

const (
	KindNone              Kind = "none"
	KindPermission        Kind = "permission"
	KindMissingStore      Kind = "missing_store"
	KindBlockedCredential Kind = "blocked_credential"
	KindNetwork           Kind = "network"
	KindUnknown           Kind = "unknown"
)

// sticky: после такой классификации другие отказы её не перетирают.
func (k Kind) sticky() bool {
	return k == KindPermission || k == KindMissingStore
}

// Hint — подсказка оператору для экрана диагностики.
func (k Kind) Hint() string {
	switch k {
	case KindMissingStore:
		return "the document store does not exist or its API is disabled; create it and reload"
	case KindPermission:
		return "the store rejected the request; update its access rules"
	case KindBlockedCredential:
		return "the store credential is a placeholder, invalid, blocked or expired"
	case KindNetwork:
		return "the store is unreachable; serving cached data"
	case KindUnknown:
		return "unexpected store failure; see logs"
	default:
		return ""
	}
}

type State struct {
	Status Status `json:"-"`
	Kind   Kind   `json:"kind"`
}

func (s State) Ready() bool { return s.Status == Ready }

func (s State) String() string {
	if s.Status == Failed {
		return fmt.Sprintf("error(%s)", s.Kind)
	}
	return s.Status.String()
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
