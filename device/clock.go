package device

// extendClock extends a 32-bit microsecond device-timestamp counter into the
// device's monotonic 64-bit nanosecond timeline: on the first sample the
// clock is initialised to deviceTS*1000; thereafter the delta between
// consecutive 32-bit counters, computed with unsigned wraparound, is added
// in nanoseconds. This keeps the clock strictly non-decreasing across any
// sequence of deviceTS values, including a counter wrap.
func (d *Record) extendClock(deviceTS uint32) int64 {
	if !d.haveClock {
		d.haveClock = true
		d.lastDeviceTS = deviceTS
		d.deviceClockNS = int64(deviceTS) * 1000
		return d.deviceClockNS
	}
	deltaUS := deviceTS - d.lastDeviceTS // uint32 subtraction wraps correctly
	d.lastDeviceTS = deviceTS
	d.deviceClockNS += int64(deltaUS) * 1000
	return d.deviceClockNS
}
