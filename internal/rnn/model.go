package rnn

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/mat"
)

func randomDense(rows, cols int, std float64, rng *rand.Rand) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
	return mat.NewDense(rows, cols, data)
}

// Params holds the network weights.
//
//	h_t = tanh(Wx·E[x_t] + Wh·h_{t-1} + Bh)
//	p_t = softmax(Wy·h_t + By)
type Params struct {
	E  *mat.Dense
	Wx *mat.Dense
	Wh *mat.Dense
	Bh *mat.VecDense
	Wy *mat.Dense
	By *mat.VecDense
}

// tensors exposes the backing arrays for the optimiser. Matrices created by
// mat.NewDense are contiguous, so Data covers every element.
func (p *Params) tensors() [][]float64 {
	return [][]float64{
		p.E.RawMatrix().Data,
		p.Wx.RawMatrix().Data,
		p.Wh.RawMatrix().Data,
		p.Bh.RawVector().Data,
		p.Wy.RawMatrix().Data,
		p.By.RawVector().Data,
	}
}

func zeroLike(p *Params) *Params {
	zero := func(d *mat.Dense) *mat.Dense {
		r, c := d.Dims()
		return mat.NewDense(r, c, nil)
	}
	return &Params{
		E:  zero(p.E),
		Wx: zero(p.Wx),
		Wh: zero(p.Wh),
		Bh: mat.NewVecDense(p.Bh.Len(), nil),
		Wy: zero(p.Wy),
		By: mat.NewVecDense(p.By.Len(), nil),
	}
}

// denseJSON persists the row-major backing array of a matrix.
type denseJSON struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

type paramsJSON struct {
	E  denseJSON `json:"embedding"`
	Wx denseJSON `json:"w_xh"`
	Wh denseJSON `json:"w_hh"`
	Bh []float64 `json:"b_h"`
	Wy denseJSON `json:"w_hy"`
	By []float64 `json:"b_y"`
}

func toJSON(d *mat.Dense) denseJSON {
	raw := d.RawMatrix()
	return denseJSON{Rows: raw.Rows, Cols: raw.Cols, Data: raw.Data}
}

func (j denseJSON) dense(name string, rows, cols int) (*mat.Dense, error) {
	if j.Rows != rows || j.Cols != cols || len(j.Data) != rows*cols {
		return nil, fmt.Errorf("%s: want %dx%d, got %dx%d with %d values", name, rows, cols, j.Rows, j.Cols, len(j.Data))
	}
	return mat.NewDense(rows, cols, j.Data), nil
}

func (j paramsJSON) params(vocab, emb, hidden int) (Params, error) {
	var (
		p   Params
		err error
	)
	if p.E, err = j.E.dense("embedding", vocab, emb); err != nil {
		return p, err
	}
	if p.Wx, err = j.Wx.dense("w_xh", hidden, emb); err != nil {
		return p, err
	}
	if p.Wh, err = j.Wh.dense("w_hh", hidden, hidden); err != nil {
		return p, err
	}
	if p.Bh, err = vecDense("b_h", j.Bh, hidden); err != nil {
		return p, err
	}
	if p.Wy, err = j.Wy.dense("w_hy", vocab, hidden); err != nil {
		return p, err
	}
	p.By, err = vecDense("b_y", j.By, vocab)
	return p, err
}

func vecDense(name string, data []float64, n int) (*mat.VecDense, error) {
	if len(data) != n {
		return nil, fmt.Errorf("%s: want %d values, got %d", name, n, len(data))
	}
	return mat.NewVecDense(n, data), nil
}

// Options configures model size and optimisation.
type Options struct {
	Vocab        int
	EmbeddingDim int
	HiddenDim    int
	LearningRate float64
	GradClip     float64
}

// Model is a word-level Elman RNN language model.
type Model struct {
	Vocab        int
	EmbeddingDim int
	HiddenDim    int
	LearningRate float64
	GradClip     float64
	// ContextSize is the sequence length the model was trained with; callers
	// feed at most ContextSize-1 tokens of context when generating.
	ContextSize int
	Params      Params

	// Adam state
	m, v *Params
	step int
	rng  *rand.Rand
}

// modelFile is the on-disk form written by Save.
type modelFile struct {
	Vocab        int        `json:"vocab"`
	EmbeddingDim int        `json:"embedding_dim"`
	HiddenDim    int        `json:"hidden_dim"`
	LearningRate float64    `json:"learning_rate"`
	GradClip     float64    `json:"grad_clip"`
	ContextSize  int        `json:"context_size"`
	Params       paramsJSON `json:"params"`
}

// NewModel initialises a model with small random weights.
func NewModel(opts Options, rng *rand.Rand) *Model {
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.01
	}
	if opts.GradClip <= 0 {
		opts.GradClip = 5.0
	}
	d, h, v := opts.EmbeddingDim, opts.HiddenDim, opts.Vocab
	m := &Model{
		Vocab:        v,
		EmbeddingDim: d,
		HiddenDim:    h,
		LearningRate: opts.LearningRate,
		GradClip:     opts.GradClip,
		rng:          rng,
		Params: Params{
			E:  randomDense(v, d, 0.1, rng),
			Wx: randomDense(h, d, 1/math.Sqrt(float64(d)), rng),
			Wh: randomDense(h, h, 1/math.Sqrt(float64(h)), rng),
			Bh: mat.NewVecDense(h, nil),
			Wy: randomDense(v, h, 1/math.Sqrt(float64(h)), rng),
			By: mat.NewVecDense(v, nil),
		},
	}
	return m
}

func (m *Model) validID(id int) bool {
	return id > PadIndex && id < m.Vocab
}

// stepHidden advances the hidden state by one token: out = tanh(Wx·E[id] + Wh·prev + Bh).
func (m *Model) stepHidden(id int, prev, out *mat.VecDense) {
	p := &m.Params
	rec := mat.NewVecDense(m.HiddenDim, nil)
	out.MulVec(p.Wx, p.E.RowView(id))
	rec.MulVec(p.Wh, prev)
	out.AddVec(out, rec)
	out.AddVec(out, p.Bh)
	raw := out.RawVector().Data
	for i := range raw {
		raw[i] = math.Tanh(raw[i])
	}
}

func (m *Model) logits(h, out *mat.VecDense) {
	out.MulVec(m.Params.Wy, h)
	out.AddVec(out, m.Params.By)
}

func softmaxInPlace(x []float64) {
	maxV := math.Inf(-1)
	for _, v := range x {
		if v > maxV {
			maxV = v
		}
	}
	sum := 0.0
	for i, v := range x {
		x[i] = math.Exp(v - maxV)
		sum += x[i]
	}
	for i := range x {
		x[i] /= sum
	}
}

// Predict returns the next-token distribution after reading context.
// Padding and out-of-range ids in context are skipped; the padding index
// always has probability zero.
func (m *Model) Predict(context []int) []float64 {
	h := mat.NewVecDense(m.HiddenDim, nil)
	next := mat.NewVecDense(m.HiddenDim, nil)
	for _, id := range context {
		if !m.validID(id) {
			continue
		}
		m.stepHidden(id, h, next)
		h, next = next, h
	}
	out := mat.NewVecDense(m.Vocab, nil)
	m.logits(h, out)
	probs := out.RawVector().Data
	if m.Vocab > 1 {
		probs[PadIndex] = math.Inf(-1)
	}
	softmaxInPlace(probs)
	return probs
}

// Argmax returns the index of the largest value.
func Argmax(x []float64) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}

// Windows splits each sequence into overlapping chunks of at most size
// tokens so that every transition is trained with at most size-1 tokens of
// context. Sequences shorter than two tokens are dropped.
func Windows(seqs [][]int, size int) [][]int {
	if size < 2 {
		size = 2
	}
	var out [][]int
	for _, s := range seqs {
		if len(s) < 2 {
			continue
		}
		for start := 0; start < len(s)-1; start += size - 1 {
			end := start + size
			if end > len(s) {
				end = len(s)
			}
			out = append(out, s[start:end])
		}
	}
	return out
}

// lossAndGrads runs BPTT over one window, accumulating into g.
func (m *Model) lossAndGrads(seq []int, g *Params) float64 {
	p := &m.Params
	steps := len(seq) - 1
	hs := make([]*mat.VecDense, steps+1)
	hs[0] = mat.NewVecDense(m.HiddenDim, nil)
	probs := make([]*mat.VecDense, steps)
	loss := 0.0

	for t := 0; t < steps; t++ {
		hs[t+1] = mat.NewVecDense(m.HiddenDim, nil)
		if m.validID(seq[t]) {
			m.stepHidden(seq[t], hs[t], hs[t+1])
		} else {
			hs[t+1].CopyVec(hs[t])
		}
		probs[t] = mat.NewVecDense(m.Vocab, nil)
		m.logits(hs[t+1], probs[t])
		softmaxInPlace(probs[t].RawVector().Data)
		target := seq[t+1]
		loss -= math.Log(math.Max(probs[t].AtVec(target), 1e-12))
	}

	dhNext := mat.NewVecDense(m.HiddenDim, nil)
	dh := mat.NewVecDense(m.HiddenDim, nil)
	raw := mat.NewVecDense(m.HiddenDim, nil)
	dEx := mat.NewVecDense(m.EmbeddingDim, nil)
	for t := steps - 1; t >= 0; t-- {
		dy := probs[t]
		dy.SetVec(seq[t+1], dy.AtVec(seq[t+1])-1)
		g.Wy.RankOne(g.Wy, 1, dy, hs[t+1])
		g.By.AddVec(g.By, dy)

		// dh = Wyᵀ·dy + dhNext
		dh.MulVec(p.Wy.T(), dy)
		dh.AddVec(dh, dhNext)

		if !m.validID(seq[t]) {
			dhNext.CopyVec(dh)
			continue
		}
		h := hs[t+1].RawVector().Data
		for i := range h {
			raw.SetVec(i, (1-h[i]*h[i])*dh.AtVec(i))
		}
		g.Bh.AddVec(g.Bh, raw)

		id := seq[t]
		g.Wx.RankOne(g.Wx, 1, raw, p.E.RowView(id))
		dEx.MulVec(p.Wx.T(), raw)
		row := g.E.RawRowView(id)
		for j, v := range dEx.RawVector().Data {
			row[j] += v
		}
		g.Wh.RankOne(g.Wh, 1, raw, hs[t])

		dhNext.MulVec(p.Wh.T(), raw)
	}
	return loss / float64(steps)
}

func (m *Model) ensureAdam() {
	if m.m == nil {
		m.m = zeroLike(&m.Params)
		m.v = zeroLike(&m.Params)
	}
}

// apply clips g by global norm, scales it by 1/n and takes one Adam step.
func (m *Model) apply(g *Params, n int) {
	const beta1, beta2, eps = 0.9, 0.999, 1e-8
	m.ensureAdam()

	grads := g.tensors()
	norm := 0.0
	for _, t := range grads {
		for i := range t {
			t[i] /= float64(n)
			norm += t[i] * t[i]
		}
	}
	norm = math.Sqrt(norm)
	scale := 1.0
	if norm > m.GradClip {
		scale = m.GradClip / norm
	}

	m.step++
	bc1 := 1 - math.Pow(beta1, float64(m.step))
	bc2 := 1 - math.Pow(beta2, float64(m.step))
	params, ms, vs := m.Params.tensors(), m.m.tensors(), m.v.tensors()
	for k := range params {
		w, gm, gv, gr := params[k], ms[k], vs[k], grads[k]
		for i := range w {
			gi := gr[i] * scale
			gm[i] = beta1*gm[i] + (1-beta1)*gi
			gv[i] = beta2*gv[i] + (1-beta2)*gi*gi
			w[i] -= m.LearningRate * (gm[i] / bc1) / (math.Sqrt(gv[i]/bc2) + eps)
		}
	}
}

// Fit trains on windows for the given number of epochs and returns the mean
// loss of every epoch.
func (m *Model) Fit(windows [][]int, epochs, batchSize int) ([]float64, error) {
	if len(windows) == 0 {
		return nil, errors.New("no training windows")
	}
	if batchSize < 1 {
		batchSize = 1
	}
	for _, w := range windows {
		for _, id := range w {
			if id < 0 || id >= m.Vocab {
				return nil, fmt.Errorf("token id %d outside vocabulary of %d", id, m.Vocab)
			}
		}
	}

	order := make([]int, len(windows))
	for i := range order {
		order[i] = i
	}
	history := make([]float64, 0, epochs)
	for e := 0; e < epochs; e++ {
		m.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		total := 0.0
		for b := 0; b < len(order); b += batchSize {
			end := b + batchSize
			if end > len(order) {
				end = len(order)
			}
			g := zeroLike(&m.Params)
			for _, idx := range order[b:end] {
				total += m.lossAndGrads(windows[idx], g)
			}
			m.apply(g, end-b)
		}
		history = append(history, total/float64(len(order)))
	}
	return history, nil
}

// Save writes the weights as JSON.
func (m *Model) Save(path string) error {
	p := &m.Params
	data, err := json.Marshal(modelFile{
		Vocab:        m.Vocab,
		EmbeddingDim: m.EmbeddingDim,
		HiddenDim:    m.HiddenDim,
		LearningRate: m.LearningRate,
		GradClip:     m.GradClip,
		ContextSize:  m.ContextSize,
		Params: paramsJSON{
			E:  toJSON(p.E),
			Wx: toJSON(p.Wx),
			Wh: toJSON(p.Wh),
			Bh: p.Bh.RawVector().Data,
			Wy: toJSON(p.Wy),
			By: p.By.RawVector().Data,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadModel reads weights written by Save. Optimiser state is not persisted.
// Every tensor is checked against the declared dimensions.
func LoadModel(path string, rng *rand.Rand) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f modelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal model: %w", err)
	}
	v, d, h := f.Vocab, f.EmbeddingDim, f.HiddenDim
	if v < 1 || d < 1 || h < 1 {
		return nil, fmt.Errorf("model file %s has invalid dimensions vocab=%d embedding=%d hidden=%d", path, v, d, h)
	}

	p, err := f.Params.params(v, d, h)
	if err != nil {
		return nil, fmt.Errorf("model file %s has inconsistent shapes: %w", path, err)
	}

	return &Model{
		Vocab:        v,
		EmbeddingDim: d,
		HiddenDim:    h,
		LearningRate: f.LearningRate,
		GradClip:     f.GradClip,
		ContextSize:  f.ContextSize,
		Params:       p,
		rng:          rng,
	}, nil
}
