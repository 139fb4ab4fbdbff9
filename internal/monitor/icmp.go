package monitor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/becape187/vpnserver-agent/internal/platform"
)

// PingResult is a single probe's outcome, as read off ping's textual report.
type PingResult struct {
	Success    bool
	PacketLoss float64 // percent, 0-100
	AvgRTT     time.Duration
}

// Pinger abstracts the ICMP probe mechanism so the monitor pass can be
// tested without shelling out.
type Pinger interface {
	Probe(ctx context.Context, ip string) (PingResult, error)
}

// packetLossRE matches "N% packet loss" in ping's summary line.
var packetLossRE = regexp.MustCompile(`([\d.]+)%\s+packet loss`)

// rttSummaryRE matches the "rtt min/avg/max/mdev = a/b/c/d ms" line (or the
// three-field "min/avg/max" variant some ping builds emit).
var rttSummaryRE = regexp.MustCompile(`(?:rtt|round-trip) \S+ = ([\d.]+)/([\d.]+)/([\d.]+)`)

// ExecPinger is the production Pinger, backed by platform.Runner invocations
// of the system's ping binary.
type ExecPinger struct {
	runner   platform.Runner
	attempts int
	deadline time.Duration
}

// NewExecPinger returns an ExecPinger configured from cfg.
func NewExecPinger(runner platform.Runner, cfg Config) *ExecPinger {
	return &ExecPinger{
		runner:   runner,
		attempts: cfg.PingAttempts,
		deadline: cfg.PingTimeout * time.Duration(cfg.PingAttempts),
	}
}

// Probe runs `ping -c N -W 1 -i 0.2 <ip>` and parses its textual report.
// A non-zero exit from ping (100% loss, unreachable) is not itself returned
// as an error — it is reflected in an unsuccessful PingResult (e.g. 100% loss) —
// since "host did not answer" is an expected liveness outcome, not a probe
// failure. Only a failure to execute ping at all is returned as an error.
func (p *ExecPinger) Probe(ctx context.Context, ip string) (PingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	result, runErr := p.runner.Run(ctx, "ping",
		"-c", strconv.Itoa(p.attempts),
		"-W", "1",
		"-i", "0.2",
		ip,
	)

	loss, lossOK := parsePacketLoss(result.Stdout)
	if !lossOK {
		if runErr != nil {
			return PingResult{}, fmt.Errorf("monitor: probe %s: %w", ip, runErr)
		}
		return PingResult{}, fmt.Errorf("monitor: probe %s: could not parse ping output", ip)
	}

	avg, _ := parseAvgRTT(result.Stdout)
	return PingResult{
		Success:    loss < 100,
		PacketLoss: loss,
		AvgRTT:     avg,
	}, nil
}

func parsePacketLoss(output string) (float64, bool) {
	m := packetLossRE.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	loss, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return loss, true
}

func parseAvgRTT(output string) (time.Duration, bool) {
	m := rttSummaryRE.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	avgMs, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(avgMs * float64(time.Millisecond)), true
}
