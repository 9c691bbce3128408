package session

// PromptAtSeconds is the remaining-seconds mark at which the guess prompt
// is raised, once per countdown.
const PromptAtSeconds = 5

// Deadline is the final-window countdown. The server supplies the duration;
// the orchestrator's ticker drives one tick per elapsed second.
type Deadline struct {
	SecondsRemaining int  `json:"secondsRemaining"`
	Active           bool `json:"active"`
	Prompted         bool `json:"prompted"`
}

// startDeadline begins a fresh countdown, cancelling any prior one outright.
// A window of exactly PromptAtSeconds is already at the prompt mark, so the
// prompt is due immediately.
func startDeadline(seconds int) (Deadline, bool) {
	d := Deadline{SecondsRemaining: seconds, Active: seconds > 0}
	if seconds == PromptAtSeconds {
		d.Prompted = true
		return d, true
	}
	return d, false
}

// tick advances the countdown by one second. It returns the new deadline
// and whether the one-time guess prompt is due at this tick.
func (d Deadline) tick() (Deadline, bool) {
	if !d.Active {
		return d, false
	}
	if d.SecondsRemaining > 0 {
		d.SecondsRemaining--
	}
	if d.SecondsRemaining == 0 {
		d.Active = false
	}
	if d.SecondsRemaining == PromptAtSeconds && !d.Prompted {
		d.Prompted = true
		return d, true
	}
	return d, false
}
