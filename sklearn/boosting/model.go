package boosting

// Model is a trained boosted ensemble.
type Model struct {
	Trees       []Tree
	InitScore   float64
	NumFeatures int
	Objective   string
	Params      Params

	GainImportance  []float64
	SplitImportance []float64
}

// PredictRaw returns the margin score of a single row.
func (m *Model) PredictRaw(features []float64) float64 {
	score := m.InitScore
	for i := range m.Trees {
		score += m.Trees[i].Predict(features)
	}
	return score
}

// PredictProba returns the positive-class probability of a single row.
func (m *Model) PredictProba(features []float64) float64 {
	return Sigmoid(m.PredictRaw(features))
}

// NumTrees returns the number of boosting rounds in the ensemble.
func (m *Model) NumTrees() int {
	return len(m.Trees)
}
