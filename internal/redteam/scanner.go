// Package redteam implements the offensive tooling: a TCP connect scanner
// and the attack simulator that feeds the blue-team log.
package redteam

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"qsec/internal/models"
)

// Scanner defaults.
const (
	DefaultTimeout  = 500 * time.Millisecond
	DefaultWorkers  = 64
	DefaultMaxPorts = 1024
)

var (
	// ErrInvalidTarget is returned for an empty or malformed scan target.
	ErrInvalidTarget = errors.New("invalid scan target")
	// ErrInvalidPort is returned for a port outside 1-65535.
	ErrInvalidPort = errors.New("invalid port")
	// ErrTooManyPorts is returned when a request exceeds the per-scan limit.
	ErrTooManyPorts = errors.New("too many ports")
)

var wellKnownServices = map[int]string{
	20:    "ftp-data",
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "domain",
	80:    "http",
	110:   "pop3",
	111:   "sunrpc",
	135:   "epmap",
	139:   "netbios-ssn",
	143:   "imap",
	389:   "ldap",
	443:   "https",
	445:   "microsoft-ds",
	465:   "submissions",
	587:   "submission",
	993:   "imaps",
	995:   "pop3s",
	1433:  "ms-sql-s",
	1521:  "oracle",
	2049:  "nfs",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	5432:  "postgresql",
	5900:  "vnc",
	6379:  "redis",
	8000:  "http-alt",
	8080:  "http-alt",
	8443:  "https-alt",
	9200:  "elasticsearch",
	27017: "mongodb",
}

// ServiceName returns the conventional service for port, or "Unknown".
func ServiceName(port int) string {
	if name, ok := wellKnownServices[port]; ok {
		return name
	}
	return "Unknown"
}

// Scanner performs TCP connect scans.
type Scanner struct {
	Timeout  time.Duration
	Workers  int
	MaxPorts int

	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewScanner returns a scanner; non-positive arguments select defaults.
func NewScanner(timeout time.Duration, workers, maxPorts int) *Scanner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if maxPorts <= 0 {
		maxPorts = DefaultMaxPorts
	}
	d := &net.Dialer{}
	return &Scanner{Timeout: timeout, Workers: workers, MaxPorts: maxPorts, dial: d.DialContext}
}

// Validate checks target and ports without touching the network.
func (s *Scanner) Validate(target string, ports []int) error {
	target = strings.TrimSpace(target)
	if target == "" || strings.ContainsAny(target, " /\\") {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	if net.ParseIP(target) == nil && !validHostname(target) {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	if len(ports) == 0 {
		return fmt.Errorf("%w: no ports given", ErrInvalidPort)
	}
	if len(ports) > s.MaxPorts {
		return fmt.Errorf("%w: %d > %d", ErrTooManyPorts, len(ports), s.MaxPorts)
	}
	for _, p := range ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPort, p)
		}
	}
	return nil
}

// Scan probes every port on target and returns results in input order.
// Individual connection failures are reported per port, never as an error.
func (s *Scanner) Scan(ctx context.Context, target string, ports []int) ([]models.PortResult, error) {
	if err := s.Validate(target, ports); err != nil {
		return nil, err
	}
	target = strings.TrimSpace(target)
	results := make([]models.PortResult, len(ports))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i, port := range ports {
		g.Go(func() error {
			results[i] = s.probe(gctx, target, port)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("scan interrupted: %w", err)
	}
	return results, nil
}

func (s *Scanner) probe(ctx context.Context, target string, port int) models.PortResult {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	conn, err := s.dial(ctx, "tcp", net.JoinHostPort(target, strconv.Itoa(port)))
	if err == nil {
		_ = conn.Close()
		return models.PortResult{Port: port, State: models.PortOpen, Service: ServiceName(port)}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return models.PortResult{Port: port, State: models.PortError, Error: dnsErr.Error()}
	}
	return models.PortResult{Port: port, State: models.PortClosed, Service: "Unknown"}
}

func validHostname(host string) bool {
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(host, "."), ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			default:
				return false
			}
		}
	}
	return true
}

// ParsePorts turns "80,443,8000-8010" into a port list.
func ParsePorts(list string) ([]int, error) {
	var ports []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPort, part)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil || end < start {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPort, part)
			}
		}
		if start < 1 || end > 65535 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPort, part)
		}
		for p := start; p <= end; p++ {
			ports = append(ports, p)
		}
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("%w: empty port list", ErrInvalidPort)
	}
	return ports, nil
}
