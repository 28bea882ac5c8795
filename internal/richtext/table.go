package richtext

// buildTable splits foreign rows into header rows (any header cell) and body
// rows, which are wrapped in a synthetic tbody.
func buildTable(r Resolution, n map[string]any) *Node {
	var head, body []*Node
	for _, rowNode := range content(n) {
		if nodeType(rowNode) != ForeignTableRow {
			continue
		}
		row := buildNode(r, rowNode)
		if row == nil {
			continue
		}
		if hasHeaderCell(rowNode) {
			head = append(head, row)
		} else {
			body = append(body, row)
		}
	}
	return assembleTable(head, body)
}

func hasHeaderCell(row map[string]any) bool {
	for _, cell := range content(row) {
		if nodeType(cell) == ForeignTableHeaderCell {
			return true
		}
	}
	return false
}

// assembleTable wraps header and body rows and seeds the column metadata
// from the widest row.
func assembleTable(head, body []*Node) *Node {
	cols := 0
	for _, rows := range [][]*Node{head, body} {
		for _, row := range rows {
			if len(row.Children) > cols {
				cols = len(row.Children)
			}
		}
	}
	widths := make([]any, cols)
	for i := range widths {
		widths[i] = defaultColSize
	}
	table := NewElement(TypeTable, map[string]any{
		"rows":      len(head) + len(body),
		"cols":      cols,
		"colWidths": widths,
	})
	if len(head) > 0 {
		table.Append(NewElement(TypeTableHead, nil, head...))
	}
	if len(body) > 0 {
		table.Append(NewElement(TypeTableBody, nil, body...))
	}
	return table
}
