package workflow

// State is a step of a workflow run.
// An encrypt run goes through Idle, SaltReady, KeyDerived, Encrypted, Published (publish mode only), then Done.
// A decrypt run goes through Idle, SaltReady, KeyDerived, Decrypted, Validated, then Done.
// Any step may end in Failed.
type State int

const (
	Idle State = iota
	SaltReady
	KeyDerived
	Encrypted
	Published
	Decrypted
	Validated
	Done
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	SaltReady:  "salt-ready",
	KeyDerived: "key-derived",
	Encrypted:  "encrypted",
	Published:  "published",
	Decrypted:  "decrypted",
	Validated:  "validated",
	Done:       "done",
	Failed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
