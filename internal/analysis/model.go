package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DefaultConfidenceLevel   = 0.95
	DefaultSignificanceLevel = 0.05

	// aliasTolerance is the relative residual norm under which a design
	// column is treated as a linear combination of the columns before it.
	aliasTolerance = 1e-7
)

// FitOptions controls which terms enter the model and how intervals and
// significance are computed.
type FitOptions struct {
	Terms             []Term
	ConfidenceLevel   float64
	SignificanceLevel float64
}

// DefaultFitOptions uses every grouping term, 95% intervals and alpha 0.05.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Terms:             DefaultTerms(),
		ConfidenceLevel:   DefaultConfidenceLevel,
		SignificanceLevel: DefaultSignificanceLevel,
	}
}

func (o FitOptions) normalized() FitOptions {
	if len(o.Terms) == 0 {
		o.Terms = DefaultTerms()
	}
	if o.ConfidenceLevel <= 0 || o.ConfidenceLevel >= 1 {
		o.ConfidenceLevel = DefaultConfidenceLevel
	}
	if o.SignificanceLevel <= 0 || o.SignificanceLevel >= 1 {
		o.SignificanceLevel = DefaultSignificanceLevel
	}
	return o
}

// Coefficient is one estimated model term.
type Coefficient struct {
	Term     string  `json:"term"`
	Factor   Term    `json:"factor,omitempty"`
	Level    string  `json:"level,omitempty"`
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"std_error"`
	// TValue is infinite for an exact fit and is left out of JSON.
	TValue      float64 `json:"-"`
	Lower       float64 `json:"ci_lower"`
	Upper       float64 `json:"ci_upper"`
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant"`
}

// Model is an ordinary least-squares fit of group count on the design terms.
type Model struct {
	Rows       int `json:"rows"`
	Params     int `json:"params"`
	ResidualDF int `json:"residual_df"`

	Intercept    Coefficient   `json:"intercept"`
	Coefficients []Coefficient `json:"coefficients"`
	// Aliased lists design columns dropped because they were linearly
	// dependent on earlier columns (IsSummer=true given Season=Summer).
	Aliased    []string        `json:"aliased,omitempty"`
	References map[Term]string `json:"references"`

	RSquared         float64 `json:"r_squared"`
	AdjRSquared      float64 `json:"adj_r_squared"`
	ResidualStdError float64 `json:"residual_std_error"`
	FStatistic       float64 `json:"-"`
	FPValue          float64 `json:"f_p_value"`

	ConfidenceLevel   float64 `json:"confidence_level"`
	SignificanceLevel float64 `json:"significance_level"`
}

// FitCounts builds the design for counts and fits it.
func FitCounts(counts []GroupCount, opt FitOptions) (*Model, error) {
	opt = opt.normalized()
	d, err := BuildDesign(counts, opt.Terms)
	if err != nil {
		return nil, err
	}
	return Fit(d, opt)
}

// Fit estimates the model by QR least squares. Columns that are aliased with
// earlier ones are excluded and reported. The fit fails when no residual
// degrees of freedom remain.
func Fit(d *Design, opt FitOptions) (*Model, error) {
	opt = opt.normalized()
	if d == nil || d.X == nil || len(d.Y) == 0 {
		return nil, &InfeasibleError{Reason: "grouped-count table is empty"}
	}
	n, _ := d.X.Dims()

	keep, aliased := independentColumns(d.X)
	k := len(keep)
	if n <= k {
		return nil, &InfeasibleError{Reason: "fewer rows than estimated parameters", Rows: n, Params: k}
	}
	x := mat.NewDense(n, k, nil)
	for j, c := range keep {
		x.SetCol(j, mat.Col(nil, c, d.X))
	}
	y := mat.NewVecDense(n, append([]float64(nil), d.Y...))

	var qr mat.QR
	qr.Factorize(x)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, y); err != nil {
		return nil, &InfeasibleError{Reason: "design matrix is rank deficient", Rows: n, Params: k}
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	resid := make([]float64, n)
	floats.SubTo(resid, d.Y, fitted.RawVector().Data)
	rss := floats.Dot(resid, resid)
	df := n - k
	sigma2 := rss / float64(df)

	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, &InfeasibleError{Reason: "design matrix is rank deficient", Rows: n, Params: k}
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, &InfeasibleError{Reason: "design matrix is rank deficient", Rows: n, Params: k}
	}

	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	tcrit := tdist.Quantile(1 - (1-opt.ConfidenceLevel)/2)

	m := &Model{
		Rows:              n,
		Params:            k,
		ResidualDF:        df,
		References:        d.References,
		ResidualStdError:  math.Sqrt(sigma2),
		ConfidenceLevel:   opt.ConfidenceLevel,
		SignificanceLevel: opt.SignificanceLevel,
	}
	for _, c := range aliased {
		m.Aliased = append(m.Aliased, d.Columns[c])
	}
	for j, c := range keep {
		est := beta.AtVec(j)
		se := math.Sqrt(math.Max(sigma2*inv.At(j, j), 0))
		tv, pv := tTest(tdist, est, se)
		coef := Coefficient{
			Term:        d.Columns[c],
			Estimate:    est,
			StdError:    se,
			TValue:      tv,
			Lower:       est - tcrit*se,
			Upper:       est + tcrit*se,
			PValue:      pv,
			Significant: pv < opt.SignificanceLevel,
		}
		if c < len(d.Factors) {
			coef.Factor = d.Factors[c]
			coef.Level = d.Levels[c]
		}
		if c == 0 && d.Columns[0] == InterceptName {
			m.Intercept = coef
			continue
		}
		m.Coefficients = append(m.Coefficients, coef)
	}

	mean := stat.Mean(d.Y, nil)
	tss := 0.0
	for _, v := range d.Y {
		tss += (v - mean) * (v - mean)
	}
	if tss > 0 {
		m.RSquared = 1 - rss/tss
		m.AdjRSquared = 1 - (1-m.RSquared)*float64(n-1)/float64(df)
	}
	m.FStatistic, m.FPValue = fTest(tss, rss, k-1, df)
	return m, nil
}

func tTest(dist distuv.StudentsT, est, se float64) (float64, float64) {
	if se == 0 {
		if est == 0 {
			return 0, 1
		}
		return math.Copysign(math.Inf(1), est), 0
	}
	t := est / se
	return t, math.Min(1, 2*dist.Survival(math.Abs(t)))
}

func fTest(tss, rss float64, d1, d2 int) (float64, float64) {
	if d1 <= 0 || tss <= rss {
		return 0, 1
	}
	if rss == 0 {
		return math.Inf(1), 0
	}
	f := ((tss - rss) / float64(d1)) / (rss / float64(d2))
	return f, distuv.F{D1: float64(d1), D2: float64(d2)}.Survival(f)
}

// independentColumns runs modified Gram-Schmidt over the columns of x in
// order and splits them into those that add a new direction and those that
// do not.
func independentColumns(x *mat.Dense) (keep, aliased []int) {
	_, p := x.Dims()
	basis := make([][]float64, 0, p)
	for j := 0; j < p; j++ {
		v := mat.Col(nil, j, x)
		orig := floats.Norm(v, 2)
		if orig == 0 {
			aliased = append(aliased, j)
			continue
		}
		for _, q := range basis {
			floats.AddScaled(v, -floats.Dot(q, v), q)
		}
		rem := floats.Norm(v, 2)
		if rem <= aliasTolerance*orig || rem == 0 {
			aliased = append(aliased, j)
			continue
		}
		floats.Scale(1/rem, v)
		basis = append(basis, v)
		keep = append(keep, j)
	}
	return keep, aliased
}

// Ranked returns the coefficients ordered by descending absolute estimate,
// ties broken by term name.
func (m *Model) Ranked() []Coefficient {
	out := make([]Coefficient, len(m.Coefficients))
	copy(out, m.Coefficients)
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Estimate), math.Abs(out[j].Estimate)
		if ai != aj {
			return ai > aj
		}
		return out[i].Term < out[j].Term
	})
	return out
}

// Top returns the first n ranked coefficients. n <= 0 returns all of them.
func (m *Model) Top(n int) []Coefficient {
	r := m.Ranked()
	if n <= 0 || n >= len(r) {
		return r
	}
	return r[:n]
}

// Significant returns the ranked coefficients whose p-value is below the
// model's significance level.
func (m *Model) Significant() []Coefficient {
	var out []Coefficient
	for _, c := range m.Ranked() {
		if c.Significant {
			out = append(out, c)
		}
	}
	return out
}

// Lookup finds a term by column name.
func (m *Model) Lookup(term string) (Coefficient, bool) {
	if term == InterceptName {
		return m.Intercept, true
	}
	for _, c := range m.Coefficients {
		if c.Term == term {
			return c, true
		}
	}
	return Coefficient{}, false
}
