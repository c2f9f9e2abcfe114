// Package grid buckets a frame's ground-plane points into a uniform 2D
// grid for fast neighbourhood queries during clustering. Points outside
// the configured extent are deliberately left unindexed — an explicit
// scope fence, not a defect — and are excluded from all neighbour search.
package grid

// Cell identifies one grid bucket by row (Y) and column (X).
type Cell struct {
	Row int
	Col int
}

// Config describes the grid geometry. The clustering position epsilon must
// not exceed CellSize for the 3×3 neighbourhood search to be exhaustive;
// config.Validate enforces that precondition.
type Config struct {
	CellSize float64
	XMin     float64
	XMax     float64
	YMin     float64
	YMax     float64
}

// Index maps cells to point indices and each point to its cell. An index
// is built fresh per frame and never mutated afterwards.
type Index struct {
	cfg     Config
	rows    int
	cols    int
	buckets map[Cell][]int
	cells   []Cell // per-point cell, valid only where indexed[i]
	indexed []bool // per-point: false when outside the extent
}

// Build bins the given positions into a new Index. xs and ys must have
// equal length.
func Build(xs, ys []float64, cfg Config) *Index {
	rows := int((cfg.YMax - cfg.YMin) / cfg.CellSize)
	cols := int((cfg.XMax - cfg.XMin) / cfg.CellSize)
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}

	ix := &Index{
		cfg:     cfg,
		rows:    rows,
		cols:    cols,
		buckets: make(map[Cell][]int, len(xs)/4+1),
		cells:   make([]Cell, len(xs)),
		indexed: make([]bool, len(xs)),
	}

	for i := range xs {
		cell, ok := ix.locate(xs[i], ys[i])
		if !ok {
			continue
		}
		ix.cells[i] = cell
		ix.indexed[i] = true
		ix.buckets[cell] = append(ix.buckets[cell], i)
	}
	return ix
}

// locate maps a position to its cell, reporting false outside the extent.
func (ix *Index) locate(x, y float64) (Cell, bool) {
	if x < ix.cfg.XMin || x >= ix.cfg.XMax || y < ix.cfg.YMin || y >= ix.cfg.YMax {
		return Cell{}, false
	}
	col := int((x - ix.cfg.XMin) / ix.cfg.CellSize)
	row := int((y - ix.cfg.YMin) / ix.cfg.CellSize)
	// Guard the upper boundary against floating point rounding.
	if col >= ix.cols {
		col = ix.cols - 1
	}
	if row >= ix.rows {
		row = ix.rows - 1
	}
	return Cell{Row: row, Col: col}, true
}

// CellOf returns point i's cell. ok is false for unindexed points.
func (ix *Index) CellOf(i int) (Cell, bool) {
	if !ix.indexed[i] {
		return Cell{}, false
	}
	return ix.cells[i], true
}

// Bucket returns the point indices binned into the given cell.
func (ix *Index) Bucket(c Cell) []int {
	return ix.buckets[c]
}

// Candidates returns the indices of all points in point i's cell and its
// 8 neighbours. Unindexed points have no candidates.
func (ix *Index) Candidates(i int) []int {
	cell, ok := ix.CellOf(i)
	if !ok {
		return nil
	}
	var out []int
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			r, c := cell.Row+dr, cell.Col+dc
			if r < 0 || r >= ix.rows || c < 0 || c >= ix.cols {
				continue
			}
			out = append(out, ix.buckets[Cell{Row: r, Col: c}]...)
		}
	}
	return out
}

// Dims returns the grid dimensions in rows and columns.
func (ix *Index) Dims() (rows, cols int) {
	return ix.rows, ix.cols
}
