package main

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

var rssBytesFunc = rssBytes

// rssTracker samples the resident set size between rows. Sampling happens on
// the sweep goroutine so it never overlaps timed estimator work.
type rssTracker struct {
	last float64
	peak float64
}

func (t *rssTracker) sample() float64 {
	v := rssBytesFunc()
	if v <= 0 {
		return t.last
	}
	t.last = v
	if v > t.peak {
		t.peak = v
	}
	return v
}

// rssBytes reads the current RSS from procfs. It returns 0 where procfs is
// unavailable.
func rssBytes() float64 {
	if v := rssFromProcStatm("/proc/self/statm"); v > 0 {
		return v
	}
	return rssFromProcStatus("/proc/self/status")
}

func rssFromProcStatm(path string) float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return float64(pages * uint64(os.Getpagesize()))
}

func rssFromProcStatus(path string) float64 {
	file, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		rest, ok := strings.CutPrefix(scanner.Text(), "VmRSS:")
		if !ok {
			continue
		}
		parts := strings.Fields(rest)
		if len(parts) < 1 {
			return 0
		}
		kb, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return 0
		}
		return float64(kb * 1024)
	}
	return 0
}
