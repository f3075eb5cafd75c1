package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// ClickResult is the outcome of a click attempt on a page control.
type ClickResult int

const (
	ClickAbsent ClickResult = iota
	ClickDone
	ClickFailed
)

func (r ClickResult) String() string {
	switch r {
	case ClickAbsent:
		return "absent"
	case ClickDone:
		return "clicked"
	default:
		return "failed"
	}
}

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func buildIIFE(body string) string {
	return `(function(){
try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + CodeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}

func jsClickNth(selector string, index int) string {
	return buildIIFE(fmt.Sprintf(`var els = document.querySelectorAll(%s);
var el = els[%d];
if (!el) {
  return JSON.stringify({ok:true,data:{clicked:false,count:els.length}});
}
el.click();
return JSON.stringify({ok:true,data:{clicked:true,count:els.length}});`, jsString(selector), index))
}

func jsListAttr(selector, attr string) string {
	return buildIIFE(fmt.Sprintf(`var out = [];
document.querySelectorAll(%s).forEach(function(el) {
  var v = el.getAttribute(%s);
  if (v) { out.push(v); }
});
return JSON.stringify({ok:true,data:out});`, jsString(selector), jsString(attr)))
}

func jsReadAttr(selector, attr string) string {
	return buildIIFE(fmt.Sprintf(`var el = document.querySelector(%s);
if (!el) {
  return JSON.stringify({ok:true,data:{found:false,value:""}});
}
return JSON.stringify({ok:true,data:{found:true,value:el.getAttribute(%s) || ""}});`, jsString(selector), jsString(attr)))
}

func episodeSelector(id string) string {
	return fmt.Sprintf("[id=%s]", jsString(id))
}

// evaluate runs js through the driver and decodes the envelope data into out.
func evaluate(ctx context.Context, d Driver, js string, out any) error {
	raw, err := d.Evaluate(ctx, js)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		return newError(CodeEvalFailure, "evaluation failed", err)
	}
	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = CodeEvalFailure
		}
		return newError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation payload", err)
	}
	return nil
}

func clickNth(ctx context.Context, d Driver, selector string, index int) (ClickResult, error) {
	var res struct {
		Clicked bool `json:"clicked"`
		Count   int  `json:"count"`
	}
	if err := evaluate(ctx, d, jsClickNth(selector, index), &res); err != nil {
		slog.Debug("click failed", "selector", selector, "index", index, "error", err)
		return ClickFailed, err
	}
	if !res.Clicked {
		return ClickAbsent, nil
	}
	return ClickDone, nil
}

func listAttr(ctx context.Context, d Driver, selector, attr string) ([]string, error) {
	var out []string
	if err := evaluate(ctx, d, jsListAttr(selector, attr), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func readAttr(ctx context.Context, d Driver, selector, attr string) (string, bool, error) {
	var res struct {
		Found bool   `json:"found"`
		Value string `json:"value"`
	}
	if err := evaluate(ctx, d, jsReadAttr(selector, attr), &res); err != nil {
		return "", false, err
	}
	return res.Value, res.Found, nil
}
