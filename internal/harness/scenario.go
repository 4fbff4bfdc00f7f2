package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stocksync/internal/movement"
)

// DefaultDeviceID is used when a scenario does not name a device.
const DefaultDeviceID = "harness-device"

// Scenario is a scripted offline/online session against a fake endpoint.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// DeviceID is sent with every request. Defaults to DefaultDeviceID.
	DeviceID string `yaml:"device_id,omitempty"`

	// StartOffline starts the monitor offline instead of online.
	StartOffline bool `yaml:"start_offline,omitempty"`

	// MaxRejections enables dead-lettering; zero retries forever.
	MaxRejections int `yaml:"max_rejections,omitempty"`

	// Stock seeds the fake endpoint before the first step.
	Stock []StockLevel `yaml:"stock,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final queue and endpoint state.
	Assertions []Assertion `yaml:"assertions"`
}

// StockLevel is one remote stock entry.
type StockLevel struct {
	Shop    string `yaml:"shop"`
	Article string `yaml:"article"`
	Qty     int64  `yaml:"qty"`
}

// Step is a single scenario action. Exactly one action field is set.
type Step struct {
	// Online switches the connectivity monitor.
	Online *bool `yaml:"online,omitempty"`

	// Submit hands a movement to the submitter.
	Submit *SubmitStep `yaml:"submit,omitempty"`

	// Drain runs one drain pass.
	Drain bool `yaml:"drain,omitempty"`

	// Remote changes how the fake endpoint answers.
	Remote *RemoteStep `yaml:"remote,omitempty"`

	// Restart closes the store and reopens it from disk.
	Restart bool `yaml:"restart,omitempty"`

	// Expect is the outcome of a submit (confirmed, queued, invalid) or the
	// result of a drain (idle, aborted, skipped).
	Expect string `yaml:"expect,omitempty"`
}

// SubmitStep is the movement entered by the user.
type SubmitStep struct {
	Shop    string `yaml:"shop"`
	Article string `yaml:"article"`
	Type    string `yaml:"type"`
	Qty     int64  `yaml:"qty"`
	Reason  string `yaml:"reason,omitempty"`
}

// Movement converts the step into a movement.
func (s SubmitStep) Movement() movement.Movement {
	return movement.Movement{
		ShopID:    s.Shop,
		ArticleID: s.Article,
		Kind:      movement.Kind(s.Type),
		Quantity:  s.Qty,
		Reason:    s.Reason,
	}
}

// RemoteStep scripts the fake endpoint.
type RemoteStep struct {
	// Down makes every request fail at the transport level.
	Down *bool `yaml:"down,omitempty"`

	// FailArticle answers every request for the article with Status and Body.
	FailArticle string `yaml:"fail_article,omitempty"`
	Status      int    `yaml:"status,omitempty"`
	Body        string `yaml:"body,omitempty"`

	// ClearArticle removes a FailArticle rule.
	ClearArticle string `yaml:"clear_article,omitempty"`
}

// Assertion validates the state after the last step.
type Assertion struct {
	// Type selects the check; see the Assert constants.
	Type string `yaml:"type"`

	// Count is used by pending_count, dead_letter_count and request_count.
	Count *int `yaml:"count,omitempty"`

	// Articles is the expected accepted order (accepted_order).
	Articles []string `yaml:"articles,omitempty"`

	// Reasons is the expected accepted reasons in order (accepted_reasons).
	Reasons []string `yaml:"reasons,omitempty"`

	// Shop, Article and Qty are used by stock.
	Shop    string `yaml:"shop,omitempty"`
	Article string `yaml:"article,omitempty"`
	Qty     *int64 `yaml:"qty,omitempty"`
}

// Assertion type constants.
const (
	AssertPendingCount    = "pending_count"
	AssertDeadLetterCount = "dead_letter_count"
	AssertRequestCount    = "request_count"
	AssertAcceptedOrder   = "accepted_order"
	AssertAcceptedReasons = "accepted_reasons"
	AssertStock           = "stock"
)

// Step expectations.
const (
	ExpectConfirmed = "confirmed"
	ExpectQueued    = "queued"
	ExpectInvalid   = "invalid"
	ExpectIdle      = "idle"
	ExpectAborted   = "aborted"
	ExpectSkipped   = "skipped"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.DeviceID == "" {
		scenario.DeviceID = DefaultDeviceID
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.MaxRejections < 0 {
		return fmt.Errorf("max_rejections must not be negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, lvl := range s.Stock {
		if lvl.Shop == "" || lvl.Article == "" {
			return fmt.Errorf("stock[%d]: shop and article are required", i)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st Step) error {
	actions := 0
	for _, set := range []bool{st.Online != nil, st.Submit != nil, st.Drain, st.Remote != nil, st.Restart} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one of online, submit, drain, remote, restart is required", index)
	}

	switch {
	case st.Submit != nil:
		switch st.Expect {
		case "", ExpectConfirmed, ExpectQueued, ExpectInvalid:
		default:
			return fmt.Errorf("steps[%d]: unknown submit expectation %q", index, st.Expect)
		}
	case st.Drain:
		switch st.Expect {
		case "", ExpectIdle, ExpectAborted, ExpectSkipped:
		default:
			return fmt.Errorf("steps[%d]: unknown drain expectation %q", index, st.Expect)
		}
	case st.Expect != "":
		return fmt.Errorf("steps[%d]: expect is only valid on submit and drain", index)
	}

	if r := st.Remote; r != nil {
		if r.Down == nil && r.FailArticle == "" && r.ClearArticle == "" {
			return fmt.Errorf("steps[%d].remote: one of down, fail_article, clear_article is required", index)
		}
		if r.FailArticle != "" && r.Status == 0 {
			return fmt.Errorf("steps[%d].remote: status is required with fail_article", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPendingCount, AssertDeadLetterCount, AssertRequestCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must not be negative", index)
		}
	case AssertAcceptedOrder:
		if a.Articles == nil {
			return fmt.Errorf("assertions[%d]: articles list is required for accepted_order", index)
		}
	case AssertAcceptedReasons:
		if a.Reasons == nil {
			return fmt.Errorf("assertions[%d]: reasons list is required for accepted_reasons", index)
		}
	case AssertStock:
		if a.Shop == "" || a.Article == "" || a.Qty == nil {
			return fmt.Errorf("assertions[%d]: shop, article and qty are required for stock", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
