package linecount

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/alexaandru/go-sitter-forest/c"
	"github.com/alexaandru/go-sitter-forest/cpp"
)

const commentNodeType = "comment"

var (
	errPoolType   = errors.New("unexpected parser pool type")
	errNoRootNode = errors.New("parse produced no root node")
)

// grammars maps enry language names to tree-sitter grammars.
var grammars = map[string]func() unsafe.Pointer{
	"C":   c.GetLanguage,
	"C++": cpp.GetLanguage,
}

// SupportsLanguage reports whether the native backend can classify language.
func SupportsLanguage(language string) bool {
	_, ok := grammars[language]

	return ok
}

type byteSpan struct {
	start int
	end   int
}

// commentScanner finds comment byte ranges with a pooled tree-sitter parser.
type commentScanner struct {
	pool sync.Pool
}

func newCommentScanner(language string) (*commentScanner, error) {
	fn, ok := grammars[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	lang := sitter.NewLanguage(fn())

	return &commentScanner{
		pool: sync.Pool{
			New: func() any {
				parser := sitter.NewParser()
				parser.SetLanguage(lang)

				return parser
			},
		},
	}, nil
}

func (s *commentScanner) spans(ctx context.Context, src []byte) ([]byteSpan, error) {
	parser, ok := s.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer s.pool.Put(parser)

	tree, err := parser.ParseString(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse comments: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, errNoRootNode
	}

	var out []byteSpan

	collectComments(root, &out)

	return out, nil
}

func collectComments(n sitter.Node, out *[]byteSpan) {
	if n.Type() == commentNodeType {
		*out = append(*out, byteSpan{start: int(n.StartByte()), end: int(n.EndByte())})

		return
	}

	for idx := range n.NamedChildCount() {
		collectComments(n.NamedChild(idx), out)
	}
}
