package dialogue

// Expect tells the telephony gateway what kind of speech to listen for
// after the prompt, so it can bias recognition accordingly.
type Expect string

const (
	// ExpectNone means do not listen; the directive ends the exchange.
	ExpectNone Expect = ""
	// ExpectIntent listens for a top-level menu request.
	ExpectIntent Expect = "intent"
	// ExpectDate listens for a day phrase.
	ExpectDate Expect = "date"
	// ExpectTime listens for a clock time.
	ExpectTime Expect = "time"
	// ExpectName listens for a caller name.
	ExpectName Expect = "name"
	// ExpectConfirm listens for a yes or no.
	ExpectConfirm Expect = "confirm"
)

// Directive is one turn's instruction back to the gateway: speak the Say
// segments in order, then either listen for the expected input or hang up.
type Directive struct {
	Say    []string
	Expect Expect
	Hangup bool
}

// Terminal reports whether the directive ends the call.
func (d Directive) Terminal() bool { return d.Hangup }
