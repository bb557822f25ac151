// Package section extracts labeled sections from a flat stream of content blocks.
package section

import "strings"

// BlockType is the kind of a content block.
type BlockType string

// Block types understood by the scanner. Others are ignored.
const (
	Heading1         BlockType = "heading_1"
	Heading2         BlockType = "heading_2"
	Paragraph        BlockType = "paragraph"
	BulletedListItem BlockType = "bulleted_list_item"
	Divider          BlockType = "divider"
)

// Block is one element of a document outline.
type Block struct {
	Type BlockType
	Text string
}

type state struct {
	collecting bool
	section    string
}

// Scan walks blocks once and collects the text under each requested heading_2.
//
// A matching heading starts (or resumes) collection into its section. Any other
// heading_2 or a divider stops collection. Paragraph and list item text is
// appended while collecting. Headings seen without content map to an empty
// slice; headings never seen are absent.
func Scan(blocks []Block, headings ...string) map[string][]string {
	wanted := make(map[string]struct{}, len(headings))
	for _, h := range headings {
		wanted[h] = struct{}{}
	}

	out := make(map[string][]string)
	var st state
	for _, b := range blocks {
		switch b.Type {
		case Heading2:
			title := strings.TrimSpace(b.Text)
			if _, ok := wanted[title]; ok {
				st = state{collecting: true, section: title}
				if _, seen := out[title]; !seen {
					out[title] = []string{}
				}
				continue
			}
			st = state{}
		case Divider:
			st = state{}
		case Paragraph, BulletedListItem:
			if st.collecting {
				out[st.section] = append(out[st.section], b.Text)
			}
		}
	}
	return out
}
