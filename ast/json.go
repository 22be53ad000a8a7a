package ast

import (
	"encoding/json"
	"fmt"
)

// Node type discriminators used in the JSON-shaped AST wire contract.
const (
	typLiteral     = "literal"
	typClass       = "class"
	typAny         = "any"
	typEnd         = "end"
	typRuleRef     = "rule_ref"
	typSequence    = "sequence"
	typChoice      = "choice"
	typOptional    = "optional"
	typZeroOrMore  = "zero_or_more"
	typOneOrMore   = "one_or_more"
	typText        = "text"
	typSimpleAnd   = "simple_and"
	typSimpleNot   = "simple_not"
	typSemanticAnd = "semantic_and"
	typSemanticNot = "semantic_not"
	typLabeled     = "labeled"
	typAction      = "action"
	typScope       = "scope"
	typNamed       = "named"
	typAnnotated   = "annotated"
)

// jsonRange is the wire shape of a ClassRange: always [lo, hi], with a
// singleton written as [c, c].
type jsonRange [2]int32

// MarshalJSON renders the grammar as a JSON-shaped tree, with every
// node's type discriminator under "type" and its location under
// "location".
func (g *Grammar) MarshalJSON() ([]byte, error) {
	type rule struct {
		Type        string       `json:"type"`
		Name        string       `json:"name"`
		DisplayName string       `json:"displayName,omitempty"`
		Expr        Expression   `json:"expression"`
		Annotations []Annotation `json:"annotations,omitempty"`
		Location    Location     `json:"location"`
	}
	rules := make([]rule, len(g.Rules))
	for i, r := range g.Rules {
		rules[i] = rule{
			Type:        "rule",
			Name:        r.Name,
			DisplayName: r.DisplayName,
			Expr:        r.Expr,
			Annotations: r.Annotations,
			Location:    r.Location,
		}
	}
	return json.Marshal(struct {
		Type        string       `json:"type"`
		Initializer *Code        `json:"initializer,omitempty"`
		Parameters  []string     `json:"parameters,omitempty"`
		Rules       []rule       `json:"rules"`
		Location    Location     `json:"location"`
	}{
		Type:        "grammar",
		Initializer: g.Initializer,
		Parameters:  g.Parameters,
		Rules:       rules,
		Location:    g.Location,
	})
}

// UnmarshalJSON decodes a grammar from the JSON-shaped AST contract.
func (g *Grammar) UnmarshalJSON(data []byte) error {
	var raw struct {
		Initializer *Code             `json:"initializer"`
		Parameters  []string          `json:"parameters"`
		Rules       []json.RawMessage `json:"rules"`
		Location    Location          `json:"location"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Initializer = raw.Initializer
	g.Parameters = raw.Parameters
	g.Location = raw.Location
	g.Rules = make([]*Rule, 0, len(raw.Rules))
	for _, rm := range raw.Rules {
		var rr struct {
			Name        string       `json:"name"`
			DisplayName string       `json:"displayName"`
			Expr        json.RawMessage `json:"expression"`
			Annotations []Annotation `json:"annotations"`
			Location    Location     `json:"location"`
		}
		if err := json.Unmarshal(rm, &rr); err != nil {
			return fmt.Errorf("ast: decoding rule: %w", err)
		}
		expr, err := DecodeExpression(rr.Expr)
		if err != nil {
			return fmt.Errorf("ast: decoding rule %q: %w", rr.Name, err)
		}
		g.Rules = append(g.Rules, &Rule{
			Name:        rr.Name,
			DisplayName: rr.DisplayName,
			Expr:        expr,
			Annotations: rr.Annotations,
			Location:    rr.Location,
		})
	}
	g.ReindexRules()
	return nil
}

// DecodeExpression decodes a single JSON-shaped expression node,
// dispatching on its "type" discriminator.
func DecodeExpression(data json.RawMessage) (Expression, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case typLiteral:
		var v struct {
			Value      string   `json:"value"`
			IgnoreCase bool     `json:"ignoreCase"`
			Location   Location `json:"location"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return &Literal{Value: v.Value, IgnoreCase: v.IgnoreCase, Location: v.Location}, nil

	case typClass:
		var v struct {
			Parts      []jsonRange `json:"parts"`
			Inverted   bool        `json:"inverted"`
			IgnoreCase bool        `json:"ignoreCase"`
			Location   Location    `json:"location"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		parts := make([]ClassRange, len(v.Parts))
		for i, p := range v.Parts {
			parts[i] = ClassRange{Lo: rune(p[0]), Hi: rune(p[1])}
		}
		return &Class{Parts: parts, Inverted: v.Inverted, IgnoreCase: v.IgnoreCase, Location: v.Location}, nil

	case typAny:
		var v struct {
			Location Location `json:"location"`
		}
		_ = json.Unmarshal(data, &v)
		return &Any{Location: v.Location}, nil

	case typEnd:
		var v struct {
			Location Location `json:"location"`
		}
		_ = json.Unmarshal(data, &v)
		return &End{Location: v.Location}, nil

	case typRuleRef:
		var v struct {
			Name     string   `json:"name"`
			Location Location `json:"location"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return &RuleRef{Name: v.Name, Index: -1, Location: v.Location}, nil

	case typSequence:
		return decodeList(data, func(els []Expression, loc Location) Expression {
			return &Sequence{Elements: els, Location: loc}
		})

	case typChoice:
		return decodeList(data, func(els []Expression, loc Location) Expression {
			return &Choice{Alternatives: els, Location: loc}
		})

	case typOptional:
		return decodeUnary(data, func(e Expression, loc Location) Expression { return &Optional{Expr: e, Location: loc} })
	case typZeroOrMore:
		return decodeUnary(data, func(e Expression, loc Location) Expression { return &ZeroOrMore{Expr: e, Location: loc} })
	case typOneOrMore:
		return decodeUnary(data, func(e Expression, loc Location) Expression { return &OneOrMore{Expr: e, Location: loc} })
	case typText:
		return decodeUnary(data, func(e Expression, loc Location) Expression { return &Text{Expr: e, Location: loc} })
	case typSimpleAnd:
		return decodeUnary(data, func(e Expression, loc Location) Expression { return &SimpleAnd{Expr: e, Location: loc} })
	case typSimpleNot:
		return decodeUnary(data, func(e Expression, loc Location) Expression { return &SimpleNot{Expr: e, Location: loc} })

	case typSemanticAnd:
		var v struct {
			Code     Code     `json:"code"`
			Location Location `json:"location"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return &SemanticAnd{Code: v.Code, Location: v.Location}, nil

	case typSemanticNot:
		var v struct {
			Code     Code     `json:"code"`
			Location Location `json:"location"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return &SemanticNot{Code: v.Code, Location: v.Location}, nil

	case typLabeled:
		var v struct {
			Label    string          `json:"label"`
			Expr     json.RawMessage `json:"expression"`
			Location Location        `json:"location"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		e, err := DecodeExpression(v.Expr)
		if err != nil {
			return nil, err
		}
		return &Labeled{Label: v.Label, Expr: e, Location: v.Location}, nil

	case typAction:
		var v struct {
			Expr     json.RawMessage `json:"expression"`
			Code     Code            `json:"code"`
			Location Location        `json:"location"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		e, err := DecodeExpression(v.Expr)
		if err != nil {
			return nil, err
		}
		return &Action{Expr: e, Code: v.Code, Location: v.Location}, nil

	case typScope:
		var v struct {
			Expr     json.RawMessage `json:"expression"`
			Code     Code            `json:"code"`
			Location Location        `json:"location"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		e, err := DecodeExpression(v.Expr)
		if err != nil {
			return nil, err
		}
		return &Scope{Expr: e, Code: v.Code, Location: v.Location}, nil

	case typNamed:
		var v struct {
			DisplayName string          `json:"displayName"`
			Expr        json.RawMessage `json:"expression"`
			Location    Location        `json:"location"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		e, err := DecodeExpression(v.Expr)
		if err != nil {
			return nil, err
		}
		return &Named{DisplayName: v.DisplayName, Expr: e, Location: v.Location}, nil

	case typAnnotated:
		var v struct {
			Annotations []Annotation    `json:"annotations"`
			Expr        json.RawMessage `json:"expression"`
			Location    Location        `json:"location"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		e, err := DecodeExpression(v.Expr)
		if err != nil {
			return nil, err
		}
		return &Annotated{Annotations: v.Annotations, Expr: e, Location: v.Location}, nil

	default:
		return nil, fmt.Errorf("ast: unknown node type %q", head.Type)
	}
}

func decodeUnary(data json.RawMessage, build func(Expression, Location) Expression) (Expression, error) {
	var v struct {
		Expr     json.RawMessage `json:"expression"`
		Location Location        `json:"location"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	e, err := DecodeExpression(v.Expr)
	if err != nil {
		return nil, err
	}
	return build(e, v.Location), nil
}

func decodeList(data json.RawMessage, build func([]Expression, Location) Expression) (Expression, error) {
	var v struct {
		Elements []json.RawMessage `json:"elements"`
		Location Location          `json:"location"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	els := make([]Expression, len(v.Elements))
	for i, em := range v.Elements {
		e, err := DecodeExpression(em)
		if err != nil {
			return nil, err
		}
		els[i] = e
	}
	return build(els, v.Location), nil
}

// MarshalJSON implementations below give each node its "type" discriminator.

func (n *Literal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       string   `json:"type"`
		Value      string   `json:"value"`
		IgnoreCase bool     `json:"ignoreCase"`
		Location   Location `json:"location"`
	}{typLiteral, n.Value, n.IgnoreCase, n.Location})
}

func (n *Class) MarshalJSON() ([]byte, error) {
	parts := make([]jsonRange, len(n.Parts))
	for i, p := range n.Parts {
		parts[i] = jsonRange{int32(p.Lo), int32(p.Hi)}
	}
	return json.Marshal(struct {
		Type       string      `json:"type"`
		Parts      []jsonRange `json:"parts"`
		Inverted   bool        `json:"inverted"`
		IgnoreCase bool        `json:"ignoreCase"`
		Location   Location    `json:"location"`
	}{typClass, parts, n.Inverted, n.IgnoreCase, n.Location})
}

func (n *Any) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string   `json:"type"`
		Location Location `json:"location"`
	}{typAny, n.Location})
}

func (n *End) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string   `json:"type"`
		Location Location `json:"location"`
	}{typEnd, n.Location})
}

func (n *RuleRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string   `json:"type"`
		Name     string   `json:"name"`
		Location Location `json:"location"`
	}{typRuleRef, n.Name, n.Location})
}

func (n *Sequence) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string       `json:"type"`
		Elements []Expression `json:"elements"`
		Location Location     `json:"location"`
	}{typSequence, n.Elements, n.Location})
}

func (n *Choice) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string       `json:"type"`
		Elements []Expression `json:"elements"`
		Location Location     `json:"location"`
	}{typChoice, n.Alternatives, n.Location})
}

func (n *Optional) MarshalJSON() ([]byte, error) {
	return marshalUnary(typOptional, n.Expr, n.Location)
}
func (n *ZeroOrMore) MarshalJSON() ([]byte, error) {
	return marshalUnary(typZeroOrMore, n.Expr, n.Location)
}
func (n *OneOrMore) MarshalJSON() ([]byte, error) {
	return marshalUnary(typOneOrMore, n.Expr, n.Location)
}
func (n *Text) MarshalJSON() ([]byte, error) { return marshalUnary(typText, n.Expr, n.Location) }
func (n *SimpleAnd) MarshalJSON() ([]byte, error) {
	return marshalUnary(typSimpleAnd, n.Expr, n.Location)
}
func (n *SimpleNot) MarshalJSON() ([]byte, error) {
	return marshalUnary(typSimpleNot, n.Expr, n.Location)
}

func marshalUnary(typ string, e Expression, loc Location) ([]byte, error) {
	return json.Marshal(struct {
		Type     string     `json:"type"`
		Expr     Expression `json:"expression"`
		Location Location   `json:"location"`
	}{typ, e, loc})
}

func (n *SemanticAnd) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string   `json:"type"`
		Code     Code     `json:"code"`
		Location Location `json:"location"`
	}{typSemanticAnd, n.Code, n.Location})
}

func (n *SemanticNot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string   `json:"type"`
		Code     Code     `json:"code"`
		Location Location `json:"location"`
	}{typSemanticNot, n.Code, n.Location})
}

func (n *Labeled) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string     `json:"type"`
		Label    string     `json:"label"`
		Expr     Expression `json:"expression"`
		Location Location   `json:"location"`
	}{typLabeled, n.Label, n.Expr, n.Location})
}

func (n *Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string     `json:"type"`
		Expr     Expression `json:"expression"`
		Code     Code       `json:"code"`
		Location Location   `json:"location"`
	}{typAction, n.Expr, n.Code, n.Location})
}

func (n *Scope) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string     `json:"type"`
		Expr     Expression `json:"expression"`
		Code     Code       `json:"code"`
		Location Location   `json:"location"`
	}{typScope, n.Expr, n.Code, n.Location})
}

func (n *Named) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string     `json:"type"`
		DisplayName string     `json:"displayName"`
		Expr        Expression `json:"expression"`
		Location    Location   `json:"location"`
	}{typNamed, n.DisplayName, n.Expr, n.Location})
}

func (n *Annotated) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string       `json:"type"`
		Annotations []Annotation `json:"annotations"`
		Expr        Expression   `json:"expression"`
		Location    Location     `json:"location"`
	}{typAnnotated, n.Annotations, n.Expr, n.Location})
}
