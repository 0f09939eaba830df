package metrics

// MonthlyMetrics holds one month of invoice totals and the figures derived
// from them. Money is ex-GST.
type MonthlyMetrics struct {
	Revenue       float64 `json:"revenue"`
	MaterialsCost float64 `json:"materials_cost"`
	LabourCost    float64 `json:"labour_cost"`
	CompletedJobs int     `json:"completed_jobs"`

	GrossProfit        float64 `json:"gross_profit_dollars"`
	NetProfit          float64 `json:"net_profit_dollars"`
	GrossProfitPercent float64 `json:"gross_profit_percent"`
	NetProfitPercent   float64 `json:"net_profit_percent"`
	AverageJobValue    float64 `json:"average_job_value"`

	PrimaryClientJobs    int     `json:"primary_client_jobs"`
	PrimaryClientValue   float64 `json:"primary_client_value"`
	OtherClientJobs      int     `json:"other_client_jobs"`
	OtherClientValue     float64 `json:"other_client_value"`
	JobsTotal            float64 `json:"jobs_total"`
	PrimaryClientPercent float64 `json:"primary_client_percent"`
	OtherClientPercent   float64 `json:"other_client_percent"`
}

// CalculateDerived fills the derived fields from the accumulated totals.
// A zero denominator yields 0, never NaN or Inf.
func (m *MonthlyMetrics) CalculateDerived() {
	m.GrossProfit = m.Revenue - m.MaterialsCost
	m.NetProfit = m.Revenue - m.MaterialsCost - m.LabourCost

	m.GrossProfitPercent = percent(m.GrossProfit, m.Revenue)
	m.NetProfitPercent = percent(m.NetProfit, m.Revenue)

	m.AverageJobValue = 0
	if m.CompletedJobs > 0 {
		m.AverageJobValue = m.Revenue / float64(m.CompletedJobs)
	}

	m.JobsTotal = m.PrimaryClientValue + m.OtherClientValue
	m.PrimaryClientPercent = percent(m.PrimaryClientValue, m.JobsTotal)
	m.OtherClientPercent = percent(m.OtherClientValue, m.JobsTotal)
}

func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part * 100 / whole
}
