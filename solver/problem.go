package solver

// Residual is one factor in the problem: a function of the ambient values
// of the blocks it touches, returning its residual vector.
type Residual interface {
	Blocks() []*Block
	Dim() int
	Evaluate(values [][]float64) ([]float64, error)
}

// AnalyticJacobian is implemented by residuals that can provide their own
// Jacobian instead of relying on the engine's numeric differentiation. The
// returned slice has one entry per block (matching Blocks()), each of size
// Dim() x block.Param.LocalDim().
type AnalyticJacobian interface {
	Jacobian(values [][]float64) ([][]float64, error)
}

// Problem is a set of parameter blocks and the residuals tying them
// together, the unit of work the Levenberg-Marquardt loop operates on.
type Problem struct {
	blocks    []*Block
	byID      map[string]*Block
	residuals []Residual
}

// NewProblem creates an empty problem.
func NewProblem() *Problem {
	return &Problem{byID: map[string]*Block{}}
}

// AddBlock registers a parameter block. Adding the same ID twice returns
// the existing block instead of duplicating it.
func (p *Problem) AddBlock(b *Block) *Block {
	if existing, ok := p.byID[b.ID]; ok {
		return existing
	}
	p.blocks = append(p.blocks, b)
	p.byID[b.ID] = b
	return b
}

// Block looks up a previously added block by ID.
func (p *Problem) Block(id string) *Block { return p.byID[id] }

// AddResidual registers a residual factor. Every block it touches must
// already have been added via AddBlock.
func (p *Problem) AddResidual(r Residual) { p.residuals = append(p.residuals, r) }

// Blocks returns every registered block, in insertion order.
func (p *Problem) Blocks() []*Block { return p.blocks }

// Residuals returns every registered residual, in insertion order.
func (p *Problem) Residuals() []Residual { return p.residuals }
