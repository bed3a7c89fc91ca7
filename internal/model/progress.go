package model

// Progress is the progress of an external task.
//
// The raw form has ProgressPercentage and optionally Step and AmountOfSteps,
// Normalize fills the step and total percentages.
type Progress struct {
	ProgressPercentage float64
	Step               int
	AmountOfSteps      int
	Description        string

	StepProgressPercentage  float64
	TotalProgressPercentage float64
}

// Normalize maps a multi step progress into a single 0-100 scale.
func (p Progress) Normalize() Progress {
	if p.Step <= 0 {
		p.Step = 1
	}
	if p.AmountOfSteps <= 0 {
		p.AmountOfSteps = 1
	}

	singleStepWeight := 100 / float64(p.AmountOfSteps)
	p.StepProgressPercentage = p.ProgressPercentage
	p.TotalProgressPercentage = singleStepWeight*float64(p.Step-1) + p.ProgressPercentage/float64(p.AmountOfSteps)

	return p
}
