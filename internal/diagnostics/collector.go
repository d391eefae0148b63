package diagnostics

import (
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/acquisition"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/processing"
	"github.com/LoomDeBWiles/cof-tester-sub000/internal/writer"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes acquisition, processing, and writer statistics as
// Prometheus gauges/counters, for deployments that scrape metrics rather
// than (or alongside) the status-bar poller.
type Collector struct {
	acq  *acquisition.Engine
	proc *processing.Engine
	wr   *writer.Writer

	samplesPerSecond *prometheus.Desc
	bufferFillRatio  *prometheus.Desc
	packetsLost      *prometheus.Desc
	packetsReceived  *prometheus.Desc
	samplesProcessed *prometheus.Desc
	samplesDroppedIn *prometheus.Desc
	samplesDroppedLg *prometheus.Desc
	writerDropRatio  *prometheus.Desc
	writerFlushMs    *prometheus.Desc
}

// NewCollector builds a Collector over the given engines. Any of proc/wr
// may be nil if that component isn't wired in this deployment.
func NewCollector(acq *acquisition.Engine, proc *processing.Engine, wr *writer.Writer) *Collector {
	ns := "gsdv"
	return &Collector{
		acq:  acq,
		proc: proc,
		wr:   wr,
		samplesPerSecond: prometheus.NewDesc(ns+"_samples_per_second", "Current acquisition sample rate.", nil, nil),
		bufferFillRatio:  prometheus.NewDesc(ns+"_buffer_fill_ratio", "Raw ring buffer fill ratio.", nil, nil),
		packetsLost:      prometheus.NewDesc(ns+"_packets_lost_total", "Cumulative sequence-gap packet loss.", nil, nil),
		packetsReceived:  prometheus.NewDesc(ns+"_packets_received_total", "Cumulative packets received.", nil, nil),
		samplesProcessed: prometheus.NewDesc(ns+"_samples_processed_total", "Cumulative samples processed.", nil, nil),
		samplesDroppedIn: prometheus.NewDesc(ns+"_samples_dropped_input_total", "Cumulative samples dropped at the processing input queue.", nil, nil),
		samplesDroppedLg: prometheus.NewDesc(ns+"_samples_dropped_logger_total", "Cumulative samples dropped at the logger queue.", nil, nil),
		writerDropRatio:  prometheus.NewDesc(ns+"_writer_drop_ratio", "Fraction of writer rows dropped due to backpressure.", nil, nil),
		writerFlushMs:    prometheus.NewDesc(ns+"_writer_flush_latency_avg_ms", "Rolling average writer flush latency.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.samplesPerSecond
	ch <- c.bufferFillRatio
	ch <- c.packetsLost
	ch <- c.packetsReceived
	ch <- c.samplesProcessed
	ch <- c.samplesDroppedIn
	ch <- c.samplesDroppedLg
	ch <- c.writerDropRatio
	ch <- c.writerFlushMs
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.acq != nil {
		s := c.acq.Statistics()
		ch <- prometheus.MustNewConstMetric(c.samplesPerSecond, prometheus.GaugeValue, s.SamplesPerSecond)
		ch <- prometheus.MustNewConstMetric(c.bufferFillRatio, prometheus.GaugeValue, s.RingStats.FillRatio())
		ch <- prometheus.MustNewConstMetric(c.packetsLost, prometheus.CounterValue, float64(s.PacketsLost))
		ch <- prometheus.MustNewConstMetric(c.packetsReceived, prometheus.CounterValue, float64(s.PacketsReceived))
	}
	if c.proc != nil {
		s := c.proc.Statistics()
		ch <- prometheus.MustNewConstMetric(c.samplesProcessed, prometheus.CounterValue, float64(s.SamplesProcessed))
		ch <- prometheus.MustNewConstMetric(c.samplesDroppedIn, prometheus.CounterValue, float64(s.SamplesDroppedInput))
		ch <- prometheus.MustNewConstMetric(c.samplesDroppedLg, prometheus.CounterValue, float64(s.SamplesDroppedLogger))
	}
	if c.wr != nil {
		s := c.wr.Statistics()
		ch <- prometheus.MustNewConstMetric(c.writerDropRatio, prometheus.GaugeValue, s.DropRatio())
		ch <- prometheus.MustNewConstMetric(c.writerFlushMs, prometheus.GaugeValue, s.FlushLatencyAvgMs)
	}
}
