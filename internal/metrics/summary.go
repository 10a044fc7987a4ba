package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is a condensed view of the registry, printed by the CLI.
type Summary struct {
	Client     clientSummary    `json:"client"`
	Operations operationSummary `json:"operations"`
	Session    sessionSummary   `json:"session"`
	Uptime     float64          `json:"uptimeSeconds"`
}

type clientSummary struct {
	TotalRequests   float64 `json:"totalRequests"`
	ErrorRate       float64 `json:"errorRate"`
	TransportErrors float64 `json:"transportErrors"`
	P50Latency      float64 `json:"p50Latency"`
	P95Latency      float64 `json:"p95Latency"`
	P99Latency      float64 `json:"p99Latency"`
}

type operationSummary struct {
	Succeeded float64 `json:"succeeded"`
	Failed    float64 `json:"failed"`
	InFlight  float64 `json:"inFlight"`
	Pending   float64 `json:"pending"`
}

type sessionSummary struct {
	Invalidations float64 `json:"invalidations"`
}

// Summary gathers the registry and condenses it.
func (m *Metrics) Summary() (Summary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return Summary{}, fmt.Errorf("gathering metrics: %w", err)
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	return Summary{
		Client: clientSummary{
			TotalRequests:   sumCounter(fam["formdesk_client_requests_total"]),
			ErrorRate:       computeErrorRate(fam["formdesk_client_requests_total"]),
			TransportErrors: sumCounter(fam["formdesk_client_transport_errors_total"]),
			P50Latency:      histogramPercentile(fam["formdesk_client_request_duration_seconds"], 0.50),
			P95Latency:      histogramPercentile(fam["formdesk_client_request_duration_seconds"], 0.95),
			P99Latency:      histogramPercentile(fam["formdesk_client_request_duration_seconds"], 0.99),
		},
		Operations: operationSummary{
			Succeeded: sumCounterWithLabel(fam["formdesk_operations_total"], "outcome", "succeeded"),
			Failed:    sumCounterWithLabel(fam["formdesk_operations_total"], "outcome", "failed"),
			InFlight:  sumGauge(fam["formdesk_operations_in_flight"]),
			Pending:   sumGauge(fam["formdesk_slice_pending_operations"]),
		},
		Session: sessionSummary{
			Invalidations: counterValue(fam["formdesk_session_invalidations_total"]),
		},
		Uptime: float64(time.Now().Unix()) - gaugeValue(fam["formdesk_start_time_seconds"]),
	}, nil
}

// --- Prometheus metric helpers ---

func sumCounter(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func sumGauge(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetGauge() != nil {
			total += m.GetGauge().GetValue()
		}
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 || ms[0].GetGauge() == nil {
		return 0
	}
	return ms[0].GetGauge().GetValue()
}

func counterValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 || ms[0].GetCounter() == nil {
		return 0
	}
	return ms[0].GetCounter().GetValue()
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func sumCounterWithLabel(f *dto.MetricFamily, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if hasLabel(m, labelName, labelValue) && m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

// computeErrorRate is the share of requests that got a 4xx/5xx response or
// none at all (status_code "0").
func computeErrorRate(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total, errors float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() != "status_code" {
				continue
			}
			code := lp.GetValue()
			if code == "0" || (len(code) > 0 && code[0] >= '4') {
				errors += v
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errors / total
}

// histogramPercentile computes a percentile from aggregated histogram buckets
// using linear interpolation.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	if f == nil {
		return 0
	}

	type bucket struct {
		upperBound      float64
		cumulativeCount uint64
	}
	var totalCount uint64
	bucketMap := make(map[float64]uint64)

	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			bucketMap[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}

	if totalCount == 0 {
		return 0
	}

	buckets := make([]bucket, 0, len(bucketMap))
	for ub, count := range bucketMap {
		buckets = append(buckets, bucket{upperBound: ub, cumulativeCount: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].upperBound < buckets[j].upperBound
	})

	rank := q * float64(totalCount)

	var prevBound float64
	var prevCount uint64
	for _, b := range buckets {
		if math.IsInf(b.upperBound, 1) {
			break
		}
		if float64(b.cumulativeCount) >= rank {
			bucketCount := b.cumulativeCount - prevCount
			if bucketCount == 0 {
				return b.upperBound
			}
			fraction := (rank - float64(prevCount)) / float64(bucketCount)
			return prevBound + fraction*(b.upperBound-prevBound)
		}
		prevBound = b.upperBound
		prevCount = b.cumulativeCount
	}

	// Past the last finite bucket.
	for i := len(buckets) - 1; i >= 0; i-- {
		if !math.IsInf(buckets[i].upperBound, 1) {
			return buckets[i].upperBound
		}
	}
	return 0
}
