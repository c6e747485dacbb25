package sri

import (
	"fmt"
	"time"
)

// Outcome clase de resultado de un trabajo.
type Outcome string

const (
	OutcomeOk    Outcome = "ok"
	OutcomeRetry Outcome = "retry"
	OutcomeDefer Outcome = "defer"
	OutcomeFatal Outcome = "fatal"
)

// FollowUp trabajo que debe programarse al terminar.
type FollowUp struct {
	Type  JobType
	Delay time.Duration
}

// Result resultado explícito de una fase. Retry consume un intento;
// Defer reprograma sin consumirlo (contención del candado).
type Result struct {
	Outcome Outcome
	Delay   time.Duration
	Err     error
	Next    []FollowUp
}

// Ok terminó; next son los trabajos siguientes.
func Ok(next ...FollowUp) Result { return Result{Outcome: OutcomeOk, Next: next} }

// Retry falla transitoria: reintentar tras delay.
func Retry(delay time.Duration, err error) Result {
	return Result{Outcome: OutcomeRetry, Delay: delay, Err: err}
}

// Defer reprogramar tras delay sin consumir intento.
func Defer(delay time.Duration) Result { return Result{Outcome: OutcomeDefer, Delay: delay} }

// Fatal error no recuperable: no se reintenta.
func Fatal(err error) Result { return Result{Outcome: OutcomeFatal, Err: err} }

// PollAfter atajo para Ok con una consulta programada.
func PollAfter(delay time.Duration) Result {
	return Ok(FollowUp{Type: JobPollAuthorization, Delay: delay})
}

func (r Result) String() string {
	switch r.Outcome {
	case OutcomeRetry, OutcomeDefer:
		return fmt.Sprintf("%s(%s)", r.Outcome, r.Delay)
	case OutcomeFatal:
		return fmt.Sprintf("fatal(%v)", r.Err)
	}
	return string(r.Outcome)
}
