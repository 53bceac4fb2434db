// Copyright 2023 The pulse-core Authors
// This file is part of the pulse-core library.
//
// The pulse-core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The pulse-core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the pulse-core library. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pulsewallet/pulse-core/cache"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/sirupsen/logrus"
)

const scrapeTimeout = 5 * time.Second

// StateSource is the slice of the repository the parser collector reads.
type StateSource interface {
	AllStates(ctx context.Context) ([]types.ParserState, error)
}

var (
	descCurrentBlock = prometheus.NewDesc("pulse_parser_current_block",
		"Highest block fully drained by the chain's pipeline.", []string{"chain"}, nil)
	descLatestBlock = prometheus.NewDesc("pulse_parser_latest_block",
		"Chain head last observed by the pipeline.", []string{"chain"}, nil)
	descIsEnabled = prometheus.NewDesc("pulse_parser_enabled",
		"Whether the chain's pipeline is enabled (1) or not (0).", []string{"chain"}, nil)
	descUpdatedAt = prometheus.NewDesc("pulse_parser_updated_at_seconds",
		"Unix time of the last parser state mutation.", []string{"chain"}, nil)
)

// ParserCollector exports every chain's parser cursor on scrape. Reading
// the repository at scrape time keeps the exporter correct across any
// number of parser replicas.
type ParserCollector struct {
	src StateSource
	log logrus.FieldLogger
}

// NewParserCollector creates a collector over the parser state reader.
func NewParserCollector(src StateSource, log logrus.FieldLogger) *ParserCollector {
	return &ParserCollector{src: src, log: log}
}

func (c *ParserCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descCurrentBlock
	ch <- descLatestBlock
	ch <- descIsEnabled
	ch <- descUpdatedAt
}

func (c *ParserCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()
	states, err := c.src.AllStates(ctx)
	if err != nil {
		c.log.WithError(err).Warn("Reading parser states for scrape failed")
		return
	}
	for _, s := range states {
		chain := string(s.Chain)
		enabled := 0.0
		if s.IsEnabled {
			enabled = 1
		}
		ch <- prometheus.MustNewConstMetric(descCurrentBlock, prometheus.GaugeValue, float64(s.CurrentBlock), chain)
		ch <- prometheus.MustNewConstMetric(descLatestBlock, prometheus.GaugeValue, float64(s.LatestBlock), chain)
		ch <- prometheus.MustNewConstMetric(descIsEnabled, prometheus.GaugeValue, enabled, chain)
		ch <- prometheus.MustNewConstMetric(descUpdatedAt, prometheus.GaugeValue, float64(s.UpdatedAt.Unix()), chain)
	}
}

var (
	descJobLastSuccess = prometheus.NewDesc("pulse_job_last_success_seconds",
		"Unix time of the job's last successful run.", []string{"job"}, nil)
	descJobLastDuration = prometheus.NewDesc("pulse_job_last_duration_ms",
		"Wall time of the job's last run in milliseconds.", []string{"job"}, nil)
	descJobInterval = prometheus.NewDesc("pulse_job_interval_seconds",
		"Configured interval of the job.", []string{"job"}, nil)
	descJobErrors = prometheus.NewDesc("pulse_job_errors_total",
		"Errors of the job by sanitized message.", []string{"job", "error"}, nil)
	descConsumerProcessed = prometheus.NewDesc("pulse_consumer_processed_total",
		"Messages processed successfully by the consumer.", []string{"queue"}, nil)
	descConsumerLastSuccess = prometheus.NewDesc("pulse_consumer_last_success_seconds",
		"Unix time of the consumer's last processed message.", []string{"queue"}, nil)
	descConsumerAvgDuration = prometheus.NewDesc("pulse_consumer_avg_duration_ms",
		"Running average processing time in milliseconds.", []string{"queue"}, nil)
	descConsumerErrors = prometheus.NewDesc("pulse_consumer_errors_total",
		"Errors of the consumer by sanitized message.", []string{"queue", "error"}, nil)
)

// StatusCollector exports job and consumer status documents from the
// shared cache. The key sets are fixed at construction; status written by
// other replicas shows up because the cache is shared.
type StatusCollector struct {
	cache  cache.Cache
	jobs   []string
	queues []string
	log    logrus.FieldLogger
}

// NewStatusCollector creates a collector for the given job names and
// queue names.
func NewStatusCollector(c cache.Cache, jobs, queues []string, log logrus.FieldLogger) *StatusCollector {
	return &StatusCollector{cache: c, jobs: jobs, queues: queues, log: log}
}

func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descJobLastSuccess
	ch <- descJobLastDuration
	ch <- descJobInterval
	ch <- descJobErrors
	ch <- descConsumerProcessed
	ch <- descConsumerLastSuccess
	ch <- descConsumerAvgDuration
	ch <- descConsumerErrors
}

func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	for _, job := range c.jobs {
		var s types.JobStatus
		ok, err := c.cache.Get(ctx, cache.JobStatusKey(job), &s)
		if err != nil {
			c.log.WithError(err).WithField("job", job).Warn("Reading job status for scrape failed")
			continue
		}
		if !ok {
			continue
		}
		if s.LastSuccessUnix > 0 {
			ch <- prometheus.MustNewConstMetric(descJobLastSuccess, prometheus.GaugeValue, float64(s.LastSuccessUnix), job)
		}
		ch <- prometheus.MustNewConstMetric(descJobLastDuration, prometheus.GaugeValue, float64(s.LastRunMs), job)
		ch <- prometheus.MustNewConstMetric(descJobInterval, prometheus.GaugeValue, float64(s.IntervalSec), job)
		for _, e := range s.Errors {
			ch <- prometheus.MustNewConstMetric(descJobErrors, prometheus.CounterValue, float64(e.Count), job, e.Message)
		}
	}
	for _, queue := range c.queues {
		var s types.ConsumerStatus
		ok, err := c.cache.Get(ctx, cache.ConsumerStatusKey(queue), &s)
		if err != nil {
			c.log.WithError(err).WithField("queue", queue).Warn("Reading consumer status for scrape failed")
			continue
		}
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(descConsumerProcessed, prometheus.CounterValue, float64(s.Processed), queue)
		if s.LastSuccessUnix > 0 {
			ch <- prometheus.MustNewConstMetric(descConsumerLastSuccess, prometheus.GaugeValue, float64(s.LastSuccessUnix), queue)
		}
		ch <- prometheus.MustNewConstMetric(descConsumerAvgDuration, prometheus.GaugeValue, float64(s.AvgDurationMs), queue)
		for _, e := range s.Errors {
			ch <- prometheus.MustNewConstMetric(descConsumerErrors, prometheus.CounterValue, float64(e.Count), queue, e.Message)
		}
	}
}
