package model

type Phase string

const (
	PhaseBet  Phase = "BET"
	PhaseRun  Phase = "RUN"
	PhaseDone Phase = "DONE"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}
