package sched

//go:generate mockgen -destination=mocks/mock_triggerer.go -package=mocks github.com/mattjoyce/asubexec/internal/sched Triggerer

// Triggerer fires a job by name. job.Manager satisfies this.
type Triggerer interface {
	Trigger(name string) error
}
