package services

import (
	"log"
	"sync"
	"time"
)

// Sample is one economy mutation reported to the detector. Kind names what
// moved: "coins", "gems", "items", or "trade".
type Sample struct {
	Subject string
	Kind    string
	Amount  int64
}

type AnomalyFlag struct {
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// Thresholds are per-subject-per-hour ceilings. Zero disables a ceiling.
type Thresholds struct {
	CoinsPerHour  int64
	GemsPerHour   int64
	ItemsPerHour  int64
	TradesPerHour int64
	TxPerHour     int64
	// WarnAfter is the running flag total that raises an operator alert.
	WarnAfter int
	// FlagRing caps the retained per-subject flag list.
	FlagRing int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CoinsPerHour:  200_000,
		GemsPerHour:   5_000,
		ItemsPerHour:  500,
		TradesPerHour: 60,
		TxPerHour:     600,
		WarnAfter:     5,
		FlagRing:      50,
	}
}

type hourBucket struct {
	hour    int64
	coins   int64
	gems    int64
	items   int64
	trades  int64
	txCount int64
	// each ceiling flags at most once per bucket
	flagged map[string]bool
}

// Anomaly aggregates mutation samples into wall-clock hour buckets and flags
// subjects that breach the configured ceilings. Recording is fire-and-forget:
// a full queue drops the sample instead of ever blocking the mutation that
// produced it. Escalation past WarnAfter calls the alert hook; the ban
// decision itself stays with a human.
type Anomaly struct {
	thresholds Thresholds
	now        func() time.Time
	alert      func(subject string, flag AnomalyFlag)

	queue chan Sample
	done  chan struct{}

	mu      sync.Mutex
	buckets map[string][]*hourBucket
	flags   map[string][]AnomalyFlag
	totals  map[string]int
}

func NewAnomaly(thresholds Thresholds, now func() time.Time, alert func(string, AnomalyFlag)) *Anomaly {
	if now == nil {
		now = time.Now
	}
	return &Anomaly{
		thresholds: thresholds,
		now:        now,
		alert:      alert,
		queue:      make(chan Sample, 1024),
		done:       make(chan struct{}),
		buckets:    make(map[string][]*hourBucket),
		flags:      make(map[string][]AnomalyFlag),
		totals:     make(map[string]int),
	}
}

func (a *Anomaly) Start() {
	go func() {
		defer close(a.done)
		for sample := range a.queue {
			a.process(sample)
		}
	}()
}

// Stop drains whatever is already queued, then waits for the worker.
func (a *Anomaly) Stop() {
	close(a.queue)
	<-a.done
}

// Record enqueues without blocking; false means the queue was full and the
// sample was dropped.
func (a *Anomaly) Record(sample Sample) bool {
	select {
	case a.queue <- sample:
		return true
	default:
		return false
	}
}

func (a *Anomaly) Flags(subject string) []AnomalyFlag {
	a.mu.Lock()
	defer a.mu.Unlock()
	flags := make([]AnomalyFlag, len(a.flags[subject]))
	copy(flags, a.flags[subject])
	return flags
}

func (a *Anomaly) FlagTotal(subject string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totals[subject]
}

func (a *Anomaly) process(sample Sample) {
	now := a.now()
	hour := now.Unix() / 3600

	a.mu.Lock()
	bucket := a.currentBucket(sample.Subject, hour)
	bucket.txCount++
	gained := sample.Amount
	if gained < 0 {
		gained = 0
	}
	switch sample.Kind {
	case "coins":
		bucket.coins += gained
	case "gems":
		bucket.gems += gained
	case "items":
		bucket.items += gained
	case "trade":
		bucket.trades++
	}
	var raised []AnomalyFlag
	for _, breach := range a.breaches(bucket) {
		if bucket.flagged[breach] {
			continue
		}
		bucket.flagged[breach] = true
		flag := AnomalyFlag{Kind: breach, Detail: sample.Kind, Timestamp: now}
		a.flags[sample.Subject] = appendFlag(a.flags[sample.Subject], flag, a.thresholds.FlagRing)
		a.totals[sample.Subject]++
		if a.thresholds.WarnAfter > 0 && a.totals[sample.Subject] == a.thresholds.WarnAfter {
			raised = append(raised, flag)
		}
	}
	a.mu.Unlock()

	for _, flag := range raised {
		log.Printf("[anomaly] subject %s crossed warning threshold: %s", sample.Subject, flag.Kind)
		if a.alert != nil {
			a.alert(sample.Subject, flag)
		}
	}
}

// currentBucket returns the bucket for the wall-clock hour, keeping only the
// current and previous hour per subject.
func (a *Anomaly) currentBucket(subject string, hour int64) *hourBucket {
	kept := a.buckets[subject][:0]
	for _, b := range a.buckets[subject] {
		if b.hour == hour || b.hour == hour-1 {
			kept = append(kept, b)
		}
	}
	for _, b := range kept {
		if b.hour == hour {
			a.buckets[subject] = kept
			return b
		}
	}
	bucket := &hourBucket{hour: hour, flagged: make(map[string]bool)}
	a.buckets[subject] = append(kept, bucket)
	return bucket
}

func (a *Anomaly) breaches(b *hourBucket) []string {
	var names []string
	t := a.thresholds
	if t.CoinsPerHour > 0 && b.coins > t.CoinsPerHour {
		names = append(names, "coins_gain_rate")
	}
	if t.GemsPerHour > 0 && b.gems > t.GemsPerHour {
		names = append(names, "gems_gain_rate")
	}
	if t.ItemsPerHour > 0 && b.items > t.ItemsPerHour {
		names = append(names, "items_gain_rate")
	}
	if t.TradesPerHour > 0 && b.trades > t.TradesPerHour {
		names = append(names, "trade_rate")
	}
	if t.TxPerHour > 0 && b.txCount > t.TxPerHour {
		names = append(names, "transaction_rate")
	}
	return names
}

func appendFlag(flags []AnomalyFlag, flag AnomalyFlag, ring int) []AnomalyFlag {
	flags = append(flags, flag)
	if ring > 0 && len(flags) > ring {
		flags = flags[len(flags)-ring:]
	}
	return flags
}
