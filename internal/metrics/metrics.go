package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	acquisitions = make(map[acqKey]int64)
	validations  = make(map[string]int64)

	visitsTotal       = make(map[visitKey]int64)
	unknownAgentSeen  int64
	simulationsTotal  = make(map[string]int64)
	agentSyncUpserts  int64
	agentSyncFailures int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type acqKey struct {
	Strategy string
	Success  string
}

type visitKey struct {
	SiteID  string
	Matched string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordAcquisition counts one acquisition strategy attempt. Strategy is
// one of enrichment, static, dynamic.
func RecordAcquisition(strategy string, success bool) {
	mu.Lock()
	defer mu.Unlock()
	acquisitions[acqKey{Strategy: strategy, Success: boolLabel(success)}]++
}

// RecordValidation counts one readiness validation, bucketed by
// confidence band (high >= 0.8, medium >= 0.5, low below).
func RecordValidation(confidence float64) {
	band := "low"
	switch {
	case confidence >= 0.8:
		band = "high"
	case confidence >= 0.5:
		band = "medium"
	}
	mu.Lock()
	defer mu.Unlock()
	validations[band]++
}

// RecordVisit counts one telemetry visit report.
func RecordVisit(siteID string, matched bool) {
	mu.Lock()
	defer mu.Unlock()
	visitsTotal[visitKey{SiteID: siteID, Matched: boolLabel(matched)}]++
	if !matched {
		unknownAgentSeen++
	}
}

// RecordSimulation counts one simulation job reaching the given status.
func RecordSimulation(status string) {
	mu.Lock()
	defer mu.Unlock()
	simulationsTotal[status]++
}

// RecordAgentSync counts the outcome of one registry sync run.
func RecordAgentSync(upserts int, failed bool) {
	mu.Lock()
	defer mu.Unlock()
	agentSyncUpserts += int64(upserts)
	if failed {
		agentSyncFailures++
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP agentsight_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE agentsight_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "agentsight_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP agentsight_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE agentsight_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP agentsight_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE agentsight_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		sum := latencyMsSum[k]
		cnt := latencyMsCount[k]
		fmt.Fprintf(&b, "agentsight_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, sum)
		fmt.Fprintf(&b, "agentsight_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, cnt)
	}

	b.WriteString("# HELP agentsight_acquisitions_total Page acquisition attempts by strategy\n")
	b.WriteString("# TYPE agentsight_acquisitions_total counter\n")

	var acqKeys []acqKey
	for k := range acquisitions {
		acqKeys = append(acqKeys, k)
	}
	sort.Slice(acqKeys, func(i, j int) bool {
		if acqKeys[i].Strategy != acqKeys[j].Strategy {
			return acqKeys[i].Strategy < acqKeys[j].Strategy
		}
		return acqKeys[i].Success < acqKeys[j].Success
	})
	for _, k := range acqKeys {
		fmt.Fprintf(&b, "agentsight_acquisitions_total{strategy=\"%s\",success=\"%s\"} %d\n",
			k.Strategy, k.Success, acquisitions[k])
	}

	b.WriteString("# HELP agentsight_validations_total Readiness validations by confidence band\n")
	b.WriteString("# TYPE agentsight_validations_total counter\n")

	var bands []string
	for band := range validations {
		bands = append(bands, band)
	}
	sort.Strings(bands)
	for _, band := range bands {
		fmt.Fprintf(&b, "agentsight_validations_total{band=\"%s\"} %d\n", band, validations[band])
	}

	b.WriteString("# HELP agentsight_visits_total Telemetry visits by site and registry match\n")
	b.WriteString("# TYPE agentsight_visits_total counter\n")

	var visitKeys []visitKey
	for k := range visitsTotal {
		visitKeys = append(visitKeys, k)
	}
	sort.Slice(visitKeys, func(i, j int) bool {
		if visitKeys[i].SiteID != visitKeys[j].SiteID {
			return visitKeys[i].SiteID < visitKeys[j].SiteID
		}
		return visitKeys[i].Matched < visitKeys[j].Matched
	})
	for _, k := range visitKeys {
		fmt.Fprintf(&b, "agentsight_visits_total{site=\"%s\",matched=\"%s\"} %d\n",
			k.SiteID, k.Matched, visitsTotal[k])
	}

	b.WriteString("# HELP agentsight_unknown_agents_total Visits with no registry match\n")
	b.WriteString("# TYPE agentsight_unknown_agents_total counter\n")
	fmt.Fprintf(&b, "agentsight_unknown_agents_total %d\n", unknownAgentSeen)

	b.WriteString("# HELP agentsight_simulations_total Simulation jobs by terminal status\n")
	b.WriteString("# TYPE agentsight_simulations_total counter\n")

	var statuses []string
	for s := range simulationsTotal {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "agentsight_simulations_total{status=\"%s\"} %d\n", s, simulationsTotal[s])
	}

	b.WriteString("# HELP agentsight_agent_sync_upserts_total Registry entries upserted by sync\n")
	b.WriteString("# TYPE agentsight_agent_sync_upserts_total counter\n")
	fmt.Fprintf(&b, "agentsight_agent_sync_upserts_total %d\n", agentSyncUpserts)

	b.WriteString("# HELP agentsight_agent_sync_failures_total Failed registry sync runs\n")
	b.WriteString("# TYPE agentsight_agent_sync_failures_total counter\n")
	fmt.Fprintf(&b, "agentsight_agent_sync_failures_total %d\n", agentSyncFailures)

	return b.String()
}
