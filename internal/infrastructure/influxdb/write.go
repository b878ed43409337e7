package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStateSnapshot writes every numeric field of an appliance state map as
// one point. Non-numeric fields are skipped; booleans are recorded as 0/1.
//
// Called by the bridge on each device update so dashboards can graph litter
// levels, cycle counts and hopper levels over time. The write is buffered
// and sent with the next batch; it never blocks the update path. When the
// client is closed the point is silently dropped.
func (c *Client) WriteStateSnapshot(class, deviceID string, state map[string]any) {
	if !c.isConnected() {
		return
	}

	fields := numericFields(state)
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"appliance_state",
		map[string]string{
			"class":     class,
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)

	c.writer.WritePoint(point)
}

// numericFields extracts the graphable fields from a raw state map. Strings
// and nested objects have no place on a time-series axis, so only floats,
// ints and bools survive.
func numericFields(state map[string]any) map[string]interface{} {
	fields := make(map[string]interface{})
	for k, v := range state {
		switch val := v.(type) {
		case float64:
			fields[k] = val
		case int:
			fields[k] = float64(val)
		case bool:
			if val {
				fields[k] = float64(1)
			} else {
				fields[k] = float64(0)
			}
		}
	}
	return fields
}
