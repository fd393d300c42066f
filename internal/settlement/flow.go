package settlement

import (
	"github.com/rs/zerolog"

	"shift_processor/internal/domain"
)

// flow tracks one request through the state machine.
type flow struct {
	op   string
	step Step
	log  zerolog.Logger
	obs  Observer
}

func (o *Orchestrator) begin(op, depositCoin, depositNetwork, settleCoin, settleNetwork string, externalID *string) *flow {
	lc := o.log.With().Str("op", op)
	if depositCoin != "" {
		lc = lc.Str("deposit", domain.Key(depositCoin, depositNetwork))
	}
	if settleCoin != "" {
		lc = lc.Str("settle", domain.Key(settleCoin, settleNetwork))
	}
	if externalID != nil {
		lc = lc.Str("external_id", *externalID)
	}
	return &flow{op: op, log: lc.Logger(), obs: o.obs}
}

func (f *flow) advance(s Step) {
	f.step = s
	f.log.Debug().Str("step", string(s)).Msg("step")
	f.obs.ObserveStep(f.op, string(s))
}

// fail moves the flow to StepFailed and returns err unchanged.
func (f *flow) fail(err error) error {
	from := f.step
	f.step = StepFailed
	f.obs.ObserveStep(f.op, string(StepFailed))
	f.obs.ObserveFailure(f.op, err)

	ev := f.log.Warn()
	if domain.KindOf(err) == domain.KindIntegrity {
		ev = f.log.Error()
	}
	ev.Err(err).Str("from", string(from)).Str("kind", domain.KindOf(err).String()).Msg("request failed")
	return err
}
