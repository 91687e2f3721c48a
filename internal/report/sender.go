package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"hvac-collector/internal/config"
	"hvac-collector/internal/models"

	"github.com/sirupsen/logrus"
)

// DailyReport is the payload POSTed to the analytics backend at rollover.
type DailyReport struct {
	AnonymousID    string                 `json:"anonymous_id"`
	Date           string                 `json:"date"`
	DailySummary   models.DailySummary    `json:"daily_summary"`
	MovingAverages map[string]interface{} `json:"moving_averages"`
	Timestamp      string                 `json:"timestamp"`
}

type readingsBatch struct {
	AnonymousID string           `json:"anonymous_id"`
	Readings    []models.Reading `json:"readings"`
}

// Sender ships reports to the analytics backend. Failures are never fatal:
// a timeout or non-200 keeps the payload queued for the next scheduled
// trigger. The pending-report queue is bounded so a dead backend cannot
// grow memory without limit.
type Sender struct {
	config *config.Config
	logger *logrus.Logger
	client *http.Client

	mu              sync.Mutex
	pendingReadings []models.Reading
	pendingReports  []DailyReport

	sentBatches int64
	sentReports int64
	failures    int64
}

const maxPendingReports = 8

func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		config: cfg,
		logger: logger,
		client: &http.Client{},
	}
}

// QueueReading appends a raw reading to the pending batch, dropping the
// oldest entry once the queue is full.
func (s *Sender) QueueReading(r models.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingReadings = append(s.pendingReadings, r)
	if max := s.config.Collection.MaxQueueSize; max > 0 && len(s.pendingReadings) > max {
		s.pendingReadings = s.pendingReadings[len(s.pendingReadings)-max:]
	}
}

func (s *Sender) PendingReadings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingReadings)
}

// FlushReadings sends everything queued as one batch. On failure the
// readings stay queued and the error is returned for accounting only.
func (s *Sender) FlushReadings(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pendingReadings
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	payload := readingsBatch{
		AnonymousID: s.config.Report.AnonymousID,
		Readings:    batch,
	}

	timeout := time.Duration(s.config.Report.TimeoutSeconds) * time.Second
	if err := s.post(ctx, "/sensor-data", payload, timeout); err != nil {
		s.failures++
		s.logger.Warnf("Failed to send %d sensor readings: %v", len(batch), err)
		return err
	}

	s.mu.Lock()
	// Only drop what was actually sent; readings queued during the send are
	// kept for the next batch.
	s.pendingReadings = s.pendingReadings[len(batch):]
	s.mu.Unlock()

	s.sentBatches++
	s.logger.Debugf("Sent %d sensor readings", len(batch))
	return nil
}

// SendDaily attempts the daily report immediately; on failure the report is
// preserved and retried on the next trigger via RetryPending.
func (s *Sender) SendDaily(ctx context.Context, report DailyReport) error {
	timeout := time.Duration(s.config.Report.DailyTimeoutSeconds) * time.Second
	if err := s.post(ctx, "/analytics-daily-report", report, timeout); err != nil {
		s.failures++
		s.logger.Warnf("Failed to send daily report for %s: %v", report.Date, err)

		s.mu.Lock()
		s.pendingReports = append(s.pendingReports, report)
		if len(s.pendingReports) > maxPendingReports {
			s.pendingReports = s.pendingReports[len(s.pendingReports)-maxPendingReports:]
		}
		s.mu.Unlock()
		return err
	}

	s.sentReports++
	s.logger.Infof("Sent daily report for %s", report.Date)
	return nil
}

// RetryPending re-attempts previously failed daily reports, oldest first,
// stopping at the first failure.
func (s *Sender) RetryPending(ctx context.Context) {
	s.mu.Lock()
	pending := s.pendingReports
	s.pendingReports = nil
	s.mu.Unlock()

	timeout := time.Duration(s.config.Report.DailyTimeoutSeconds) * time.Second
	for i, report := range pending {
		if err := s.post(ctx, "/analytics-daily-report", report, timeout); err != nil {
			s.failures++
			remaining := append([]DailyReport{}, pending[i:]...)
			s.mu.Lock()
			s.pendingReports = append(remaining, s.pendingReports...)
			s.mu.Unlock()
			return
		}
		s.sentReports++
		s.logger.Infof("Sent queued daily report for %s", report.Date)
	}
}

func (s *Sender) Status() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"pending_readings": len(s.pendingReadings),
		"pending_reports":  len(s.pendingReports),
		"sent_batches":     s.sentBatches,
		"sent_reports":     s.sentReports,
		"send_failures":    s.failures,
	}
}

func (s *Sender) post(ctx context.Context, path string, payload interface{}, timeout time.Duration) error {
	if s.config.Report.Endpoint == "" {
		return fmt.Errorf("no data endpoint configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Report.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.Report.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Report.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned HTTP %d", resp.StatusCode)
	}
	return nil
}
