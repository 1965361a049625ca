package output

// Merge coalesces runs of consecutive fragments that share a mergeable type
// into a single fragment whose data is the concatenation of the run.
//
// Fragments of other types are passed through untouched and end any run, so
// two adjacent Signal fragments stay two blocks, and StdOut on either side of
// a Control fragment is not joined. The input is never modified, and the
// result is always recomputed from the whole sequence.
func Merge(fragments []Fragment) []Fragment {
	blocks := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		if n := len(blocks); n > 0 && f.Type.Mergeable() && blocks[n-1].Type == f.Type {
			blocks[n-1].Data += f.Data
			continue
		}
		blocks = append(blocks, f)
	}
	return blocks
}
