package html

// Parser builds a document tree from markup. The tree is always rooted at an
// <html> element: missing html/head/body tags are synthesized so downstream
// style and layout can rely on the structure.
type Parser struct {
	tokenizer *Tokenizer
	stack     []*Node
}

var headTags = map[string]bool{
	"base": true, "basefont": true, "bgsound": true, "noscript": true,
	"link": true, "meta": true, "title": true, "style": true, "script": true,
}

func NewParser(markup string) *Parser {
	return &Parser{tokenizer: NewTokenizer(markup)}
}

// Parse consumes the input and returns the root element.
func Parse(markup string) (*Node, error) {
	return NewParser(markup).Parse()
}

func (p *Parser) Parse() (*Node, error) {
	for {
		token, err := p.tokenizer.NextToken()
		if err != nil {
			return nil, err
		}
		if token.Type == TokenEOF {
			break
		}
		switch token.Type {
		case TokenText:
			p.implicitTags("")
			parent := p.current()
			parent.AddChild(NewText(token.Text, parent))

		case TokenStartTag:
			p.implicitTags(token.TagName)
			parent := p.current()
			node := NewElement(token.TagName, token.Attributes, parent)
			if parent != nil {
				parent.AddChild(node)
			}
			if IsVoidElement(token.TagName) || token.SelfClosing {
				if parent == nil {
					p.stack = append(p.stack, node)
				}
				continue
			}
			p.stack = append(p.stack, node)
			// Script and style bodies are raw text, not markup.
			if token.TagName == "script" || token.TagName == "style" {
				raw := p.tokenizer.ReadRawUntil(token.TagName)
				if raw != "" {
					node.AddChild(NewText(raw, node))
				}
				p.stack = p.stack[:len(p.stack)-1]
			}

		case TokenEndTag:
			p.closeTag(token.TagName)
		}
	}
	return p.finish()
}

func (p *Parser) current() *Node {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

// implicitTags opens html/head/body elements the markup left out, so that
// content always lands under the right structural parent.
func (p *Parser) implicitTags(tag string) {
	for {
		switch {
		case len(p.stack) == 0:
			if tag == "html" {
				return
			}
			root := NewElement("html", nil, nil)
			p.stack = append(p.stack, root)
		case len(p.stack) == 1 && tag != "head" && tag != "body" && tag != "/html":
			if headTags[tag] {
				p.openImplicit("head")
			} else {
				p.openImplicit("body")
			}
		case len(p.stack) == 2 && p.current().TagName == "head" && tag != "" && !headTags[tag] && tag != "/head":
			p.stack = p.stack[:1]
		default:
			return
		}
	}
}

func (p *Parser) openImplicit(tag string) {
	parent := p.current()
	node := NewElement(tag, nil, parent)
	parent.AddChild(node)
	p.stack = append(p.stack, node)
}

// closeTag pops to the matching open element; unmatched end tags are ignored
// (error recovery, not reported).
func (p *Parser) closeTag(tag string) {
	for i := len(p.stack) - 1; i >= 1; i-- {
		if p.stack[i].TagName == tag {
			p.stack = p.stack[:i]
			return
		}
	}
}

func (p *Parser) finish() (*Node, error) {
	if len(p.stack) == 0 {
		p.implicitTags("html")
		p.openImplicit("body")
	}
	return p.stack[0], nil
}
