package embedding

import "context"

type rawEmbedder interface {
	Embed(ctx context.Context, texts []string, isQuery bool) ([][]float32, error)
	Name() string
	Model() string
	Dimensions() int
}

// Remote adapts a client from internal/ai to the Provider contract.
type Remote struct {
	client rawEmbedder
}

func NewRemote(client rawEmbedder) *Remote {
	return &Remote{client: client}
}

func (r *Remote) Name() string {
	return r.client.Name()
}

// Model returns the model identifier the client resolved, defaults included.
func (r *Remote) Model() string {
	return r.client.Model()
}

func (r *Remote) Dimensions() int {
	return r.client.Dimensions()
}

func (r *Remote) Embed(ctx context.Context, texts []string, isQuery bool) ([]Vector, error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}
	raw, err := r.client.Embed(ctx, texts, isQuery)
	if err != nil {
		return nil, err
	}
	return FromFloat32s(raw, r.client.Dimensions())
}
