package cachecore

import (
	"os"
	"strconv"
	"time"
)

// Stats is a point-in-time snapshot of the counters memcached's own
// `stats` command reports, per spec.md §4.D.
type Stats struct {
	PID           int
	UptimeSeconds int64
	TimeUnix      int64
	CmdGets       uint64
	CmdSets       uint64
	GetHits       uint64
	GetMisses     uint64
	CurrItems     int64
	LimitMaxBytes int64
	CurrentBytes  int64
	FreeBytes     uint64
}

// Stat returns a snapshot of the cache's counters and sizing, named to
// match the protocol's own `stats` response fields.
func (c *Cache) Stat() Stats {
	return Stats{
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(c.startedAt).Seconds()),
		TimeUnix:      time.Now().Unix(),
		CmdGets:       c.cmdGets.Load(),
		CmdSets:       c.cmdSets.Load(),
		GetHits:       c.getHits.Load(),
		GetMisses:     c.getMisses.Load(),
		CurrItems:     c.data.Size(),
		LimitMaxBytes: c.data.MemoryCapacity(),
		CurrentBytes:  c.data.MemoryUsed(),
		FreeBytes:     freeBytes(),
	}
}

// AsMap renders s as the string-keyed map a text-protocol `stats`
// handler would serialize directly into STAT lines. Key names and the
// stubbed-out entries (rusage_user/rusage_system/
// connection_structures/bytes_read/bytes_written) follow memcached's
// own `stats` field table verbatim; this cache core tracks none of
// the process-rusage or connection-layer counters those stubs name,
// so they are always reported as zero rather than omitted.
func (s Stats) AsMap() map[string]string {
	return map[string]string{
		"pid":                   strconv.Itoa(s.PID),
		"uptime":                strconv.FormatInt(s.UptimeSeconds, 10),
		"time":                  strconv.FormatInt(s.TimeUnix, 10),
		"cmd_gets":              strconv.FormatUint(s.CmdGets, 10),
		"cmd_sets":              strconv.FormatUint(s.CmdSets, 10),
		"get_hits":              strconv.FormatUint(s.GetHits, 10),
		"get_misses":            strconv.FormatUint(s.GetMisses, 10),
		"curr_items":            strconv.FormatInt(s.CurrItems, 10),
		"limit_maxbytes":        strconv.FormatInt(s.LimitMaxBytes, 10),
		"current_bytes":         strconv.FormatInt(s.CurrentBytes, 10),
		"free_bytes":            strconv.FormatUint(s.FreeBytes, 10),
		"rusage_user":           "0:0",
		"rusage_system":         "0:0",
		"connection_structures": "0",
		"bytes_read":            "0",
		"bytes_written":         "0",
	}
}
