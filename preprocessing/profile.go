package preprocessing

import (
	"github.com/YuminosukeSato/windlofo/frame"
	"github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Profile pairs an ensemble aggregation with a stabilization policy. The two policies
// are not interchangeable on the same data, so a run uses exactly one profile.
type Profile struct {
	Name        string
	Aggregation Aggregation
	Policy      Policy
	Lag         int
}

var (
	// ProfileGPU aggregates with the median and first-differences the series.
	ProfileGPU = Profile{Name: "median-diff", Aggregation: AggregateMedian, Policy: PolicyFirstDifference}
	// ProfileCPU aggregates with the mean and log-differences the target with lag 1.
	ProfileCPU = Profile{Name: "mean-logdiff", Aggregation: AggregateMean, Policy: PolicyLogDifference, Lag: 1}
)

// Profiles lists the built-in profiles.
func Profiles() []Profile {
	return []Profile{ProfileGPU, ProfileCPU}
}

// LookupProfile returns the built-in profile called name.
func LookupProfile(name string) (Profile, error) {
	for _, p := range Profiles() {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, errors.NewValidationError("profile", "unknown profile", name)
}

// Stabilizer returns the target stabilizer of the profile.
func (p Profile) Stabilizer() (Stabilizer, error) {
	return NewStabilizer(p.Policy, p.Lag)
}

// Prepare aggregates the ensemble, clips cloud cover at zero and drops the raw members.
func (p Profile) Prepare(t *frame.Table) (*frame.Table, error) {
	out, err := AggregateEnsemble(t, p.Aggregation)
	if err != nil {
		return nil, err
	}
	if out.HasColumn(ColCLCT) {
		if out, err = ClipBelow(out, ColCLCT, 0); err != nil {
			return nil, err
		}
	}
	return Simplify(out)
}
