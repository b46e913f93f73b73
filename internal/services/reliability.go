package services

// CronbachAlpha estimates the internal consistency of the questionnaire
// from a [participants][questions] score matrix. Variances are population
// variances (divide by N) throughout, so perfectly correlated questions
// yield alpha = 1.0. The result is clamped to [0,1]; degenerate inputs
// (no rows, fewer than two questions, zero total variance) return 0.
func CronbachAlpha(matrix [][]float64) float64 {
	n := len(matrix)
	if n == 0 {
		return 0
	}
	k := len(matrix[0])
	if k < 2 {
		return 0
	}
	for _, row := range matrix {
		if len(row) != k {
			return 0
		}
	}

	totals := make([]float64, n)
	sumItemVars := 0.0
	col := make([]float64, n)
	for j := 0; j < k; j++ {
		for i := 0; i < n; i++ {
			col[i] = matrix[i][j]
			totals[i] += matrix[i][j]
		}
		sumItemVars += popVariance(col)
	}

	totalVar := popVariance(totals)
	if totalVar == 0 {
		return 0
	}

	kf := float64(k)
	alpha := (kf / (kf - 1.0)) * (1.0 - sumItemVars/totalVar)
	if alpha < 0 {
		return 0
	}
	if alpha > 1 {
		return 1
	}
	return alpha
}

func popVariance(vals []float64) float64 {
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(vals))
}
