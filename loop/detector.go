// Package loop detects a model that keeps emitting the same tool call
// within one generation stream.
package loop

import (
	"crypto/md5"
	"fmt"

	"stream-classifier/types"
)

// DefaultThreshold is the number of consecutive identical calls reported as a loop
const DefaultThreshold = 3

// Detector tracks the tool calls of one stream. It is not safe for concurrent use.
type Detector struct {
	threshold int
	lastName  string
	lastHash  string
	count     int
}

// Detection represents the result of loop detection
type Detection struct {
	ToolName       string
	Count          int
	Recommendation string
}

// NewDetector creates a detector reporting threshold consecutive identical
// calls. A threshold below 2 disables detection.
func NewDetector(threshold int) *Detector {
	return &Detector{threshold: threshold}
}

// Observe records call and returns a Detection when it completes a run of
// threshold identical calls, or extends one further. Calls are identical
// when name and canonical arguments match.
func (d *Detector) Observe(call types.ToolCall) *Detection {
	if d.threshold < 2 {
		return nil
	}

	hash := hashArguments(call)
	if call.Function.Name == d.lastName && hash == d.lastHash {
		d.count++
	} else {
		d.lastName = call.Function.Name
		d.lastHash = hash
		d.count = 1
	}

	if d.count < d.threshold {
		return nil
	}
	return &Detection{
		ToolName:       d.lastName,
		Count:          d.count,
		Recommendation: generateRecommendation(d.lastName, d.count),
	}
}

// Reset forgets the call history
func (d *Detector) Reset() {
	d.lastName = ""
	d.lastHash = ""
	d.count = 0
}

// hashArguments hashes the canonical JSON encoding of the arguments
// (object keys sorted, no whitespace)
func hashArguments(call types.ToolCall) string {
	args, err := call.ArgumentsJSON()
	if err != nil {
		args = fmt.Sprintf("%v", call.Function.Arguments)
	}
	hash := md5.Sum([]byte(args))
	return fmt.Sprintf("%x", hash)
}

func generateRecommendation(toolName string, count int) string {
	return fmt.Sprintf("Loop detected: %s called %d times consecutively with identical arguments. The result is likely already available to the model.", toolName, count)
}
