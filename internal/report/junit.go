package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// JUnitTestSuites is the root element of JUnit XML output.
type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents one played script.
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      string          `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	Cases     []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents one script event.
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a failed event.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents an event the walk never reached.
type JUnitSkipped struct {
	Message string `xml:"message,attr"`
}

// FormatJUnit writes the PlaybackResult as JUnit XML to the given writer.
// The scriptFile parameter is used as the classname attribute. If timestamp
// is zero, the current time is used.
func FormatJUnit(w io.Writer, result *PlaybackResult, scriptFile string, timestamp time.Time) error {
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	failures := 0
	skipped := 0
	errorsCount := 0
	cases := make([]JUnitTestCase, 0, len(result.Steps)+1)

	for _, step := range result.Steps {
		tc := JUnitTestCase{
			Name:      fmt.Sprintf("step[%d]: %s", step.Index, step.Label),
			Classname: scriptFile,
			Time:      seconds(step.Millis),
		}

		switch step.Status {
		case StatusFailed:
			failures++
			tc.Failure = &JUnitFailure{
				Message: step.Error,
				Type:    "DispatchFailure",
				Content: fmt.Sprintf("%s (%s) was not accepted: %s", step.Label, step.Delivery, step.Error),
			}
		case StatusNotReached:
			skipped++
			tc.Skipped = &JUnitSkipped{Message: "not reached"}
		}
		cases = append(cases, tc)
	}

	// An error outside any step or an interrupted walk adds one failing case.
	if result.Error != "" && failures == 0 {
		errorsCount++
		cases = append(cases, JUnitTestCase{
			Name:      "playback",
			Classname: scriptFile,
			Time:      "0.000",
			Failure: &JUnitFailure{
				Message: result.Error,
				Type:    "PlaybackError",
				Content: result.Error,
			},
		})
	} else if result.Interrupted {
		errorsCount++
		cases = append(cases, JUnitTestCase{
			Name:      "playback",
			Classname: scriptFile,
			Time:      "0.000",
			Failure: &JUnitFailure{
				Message: "playback stopped before the script completed",
				Type:    "Interrupted",
			},
		})
	}

	total := seconds(result.TotalMillis)
	suites := JUnitTestSuites{
		Name:     "hid-macro",
		Tests:    len(cases),
		Failures: failures,
		Errors:   errorsCount,
		Time:     total,
		Suites: []JUnitTestSuite{
			{
				Name:      result.Script,
				Tests:     len(cases),
				Failures:  failures,
				Errors:    errorsCount,
				Skipped:   skipped,
				Time:      total,
				Timestamp: timestamp.Format(time.RFC3339),
				Cases:     cases,
			},
		},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(suites); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func seconds(millis int64) string {
	return fmt.Sprintf("%.3f", float64(millis)/1000)
}
