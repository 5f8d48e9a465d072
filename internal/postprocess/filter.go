// Package postprocess applies component filters to CycloneDX JSON documents.
package postprocess

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/quantmind-br/bomgate/internal/domain"
	"github.com/quantmind-br/bomgate/internal/utils"
)

// Ensure Filter implements domain.PostProcessor
var _ domain.PostProcessor = (*Filter)(nil)

// Scopes dropped when only required components are requested
var optionalScopes = map[string]bool{
	"optional": true,
	"excluded": true,
}

// Filter removes components by scope and purl terms and prunes the
// dependency graph accordingly
type Filter struct {
	logger *utils.Logger
}

// NewFilter creates a Filter
func NewFilter(logger *utils.Logger) *Filter {
	return &Filter{logger: logger.OrNop().WithComponent("postprocess")}
}

// rules is the normalized filter configuration for one document
type rules struct {
	requiredOnly bool
	only         []string
	filter       []string
}

func newRules(opts domain.RequestOptions) rules {
	return rules{
		requiredOnly: opts.RequiredOnly,
		only:         lowerAll(opts.Only),
		filter:       lowerAll(opts.Filter),
	}
}

func (r rules) keep(c gjson.Result) bool {
	if r.requiredOnly && optionalScopes[strings.ToLower(c.Get("scope").String())] {
		return false
	}
	purl := strings.ToLower(c.Get("purl").String())
	if len(r.only) > 0 && !containsAny(purl, r.only) {
		return false
	}
	if len(r.filter) > 0 {
		ref := strings.ToLower(c.Get("bom-ref").String())
		if containsAny(purl, r.filter) || containsAny(ref, r.filter) {
			return false
		}
	}
	return true
}

// PostProcess returns a filtered copy of bom. A nil or empty bom is returned
// unchanged.
func (f *Filter) PostProcess(_ context.Context, bom *domain.BomResult, opts domain.RequestOptions) (*domain.BomResult, error) {
	if bom.Empty() {
		return bom, nil
	}
	data, err := bom.Bytes()
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("post-process: document is not valid JSON")
	}

	out, dropped, err := filterDocument(data, newRules(opts))
	if err != nil {
		return nil, fmt.Errorf("post-process: %w", err)
	}

	f.logger.Debug().Int("dropped", len(dropped)).Msg("Filtered components")
	return &domain.BomResult{Raw: out}, nil
}

// filterDocument rewrites the components and dependencies arrays of doc. It
// returns the bom-refs of every dropped component.
func filterDocument(doc []byte, r rules) ([]byte, map[string]bool, error) {
	dropped := make(map[string]bool)

	components := gjson.GetBytes(doc, "components")
	if components.IsArray() {
		filtered, err := filterComponents(components, r, dropped)
		if err != nil {
			return nil, nil, err
		}
		doc, err = sjson.SetRawBytes(doc, "components", filtered)
		if err != nil {
			return nil, nil, err
		}
	}

	if len(dropped) == 0 {
		return doc, dropped, nil
	}

	dependencies := gjson.GetBytes(doc, "dependencies")
	if dependencies.IsArray() {
		pruned, err := pruneDependencies(dependencies, dropped)
		if err != nil {
			return nil, nil, err
		}
		doc, err = sjson.SetRawBytes(doc, "dependencies", pruned)
		if err != nil {
			return nil, nil, err
		}
	}
	return doc, dropped, nil
}

// filterComponents walks a components array, recursing into nested
// components of kept entries
func filterComponents(arr gjson.Result, r rules, dropped map[string]bool) ([]byte, error) {
	var kept [][]byte
	for _, c := range arr.Array() {
		if !r.keep(c) {
			markDropped(c, dropped)
			continue
		}
		raw := []byte(c.Raw)
		if nested := c.Get("components"); nested.IsArray() {
			filtered, err := filterComponents(nested, r, dropped)
			if err != nil {
				return nil, err
			}
			raw, err = sjson.SetRawBytes(raw, "components", filtered)
			if err != nil {
				return nil, err
			}
		}
		kept = append(kept, raw)
	}
	return joinArray(kept), nil
}

// markDropped records the bom-ref of c and of all components nested in it
func markDropped(c gjson.Result, dropped map[string]bool) {
	if ref := c.Get("bom-ref").String(); ref != "" {
		dropped[ref] = true
	}
	c.Get("components").ForEach(func(_, nested gjson.Result) bool {
		markDropped(nested, dropped)
		return true
	})
}

func pruneDependencies(arr gjson.Result, dropped map[string]bool) ([]byte, error) {
	var kept [][]byte
	for _, d := range arr.Array() {
		if dropped[d.Get("ref").String()] {
			continue
		}
		raw := []byte(d.Raw)
		dependsOn := d.Get("dependsOn")
		if dependsOn.IsArray() {
			refs := make([]string, 0, len(dependsOn.Array()))
			for _, ref := range dependsOn.Array() {
				if !dropped[ref.String()] {
					refs = append(refs, ref.String())
				}
			}
			var err error
			raw, err = sjson.SetBytes(raw, "dependsOn", refs)
			if err != nil {
				return nil, err
			}
		}
		kept = append(kept, raw)
	}
	return joinArray(kept), nil
}

func joinArray(items [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(bytes.Join(items, []byte(",")))
	buf.WriteByte(']')
	return buf.Bytes()
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
