package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Report 回放结果
type Report struct {
	Name  string       `json:"name,omitempty"`
	Start time.Time    `json:"start"`
	Steps []StepResult `json:"steps"`
	Final FinalState   `json:"final"`
}

// StepResult 单步结果
type StepResult struct {
	Index   int      `json:"index"`
	At      Offset   `json:"at"`
	Action  string   `json:"action"`
	Asset   string   `json:"asset,omitempty"`
	Result  string   `json:"result"` // outcome, "ok" or the error label
	Code    int      `json:"code,omitempty"`
	Error   string   `json:"error,omitempty"`
	Detail  string   `json:"detail,omitempty"`
	Status  string   `json:"status,omitempty"` // asset status after the step
	Tripped bool     `json:"tripped"`
	Events  []string `json:"events,omitempty"`
	Expect  string   `json:"expect,omitempty"`
	Passed  bool     `json:"passed"`
}

// Offset 相对起始时间的偏移，JSON 中输出为 "1h30m0s"
type Offset time.Duration

func (o Offset) String() string { return time.Duration(o).String() }

// MarshalText implements encoding.TextMarshaler
func (o Offset) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// FinalState 回放结束时的状态
type FinalState struct {
	Tripped       bool          `json:"tripped"`
	Operational   bool          `json:"operational"`
	LastTrippedAt *time.Time    `json:"last_tripped_at,omitempty"`
	Assets        []AssetState  `json:"assets"`
	Locked        []LockedFunds `json:"locked,omitempty"`
}

// AssetState 资产限流状态
type AssetState struct {
	Asset              string `json:"asset"`
	Status             string `json:"status"`
	LiqTotal           string `json:"liq_total"`
	LiqInPeriod        string `json:"liq_in_period"`
	ConfirmedLiquidity string `json:"confirmed_liquidity"`
	MinRequired        string `json:"min_required"`
}

// LockedFunds 待领取余额
type LockedFunds struct {
	Recipient string `json:"recipient"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
}

// Failed steps whose expectation did not hold
func (r *Report) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if !s.Passed {
			out = append(out, s)
		}
	}
	return out
}

// WriteJSON 缩进 JSON
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText 按步骤输出表格，最后输出资产状态
func (r *Report) WriteText(w io.Writer) error {
	if r.Name != "" {
		fmt.Fprintf(w, "scenario: %s\n", r.Name)
	}
	fmt.Fprintf(w, "start:    %s\n\n", r.Start.UTC().Format(time.RFC3339))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tAT\tACTION\tASSET\tRESULT\tSTATUS\tTRIPPED\tEVENTS\tDETAIL")
	for _, s := range r.Steps {
		result := s.Result
		if !s.Passed {
			result = fmt.Sprintf("%s (expected %s)", s.Result, s.Expect)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			s.Index, s.At, s.Action, dash(s.Asset), result, dash(s.Status), s.Tripped,
			dash(strings.Join(s.Events, ",")), dash(s.Detail))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\ntripped: %t  operational: %t\n", r.Final.Tripped, r.Final.Operational)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET\tSTATUS\tLIQ_TOTAL\tLIQ_IN_PERIOD\tCONFIRMED\tMIN_REQUIRED")
	for _, a := range r.Final.Assets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Asset, a.Status, a.LiqTotal, a.LiqInPeriod, a.ConfirmedLiquidity, a.MinRequired)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Final.Locked) > 0 {
		fmt.Fprintln(w, "\nlocked funds:")
		for _, l := range r.Final.Locked {
			fmt.Fprintf(w, "  %s %s %s\n", l.Recipient, l.Asset, l.Amount)
		}
	}
	if failed := r.Failed(); len(failed) > 0 {
		fmt.Fprintf(w, "\n%d step(s) did not match expectations\n", len(failed))
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
