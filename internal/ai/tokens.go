package ai

import "context"

// HeuristicTokenCounter estimates tokens as characters/4. Good enough for
// budget checks when exact counts would cost a network round trip per node.
type HeuristicTokenCounter struct{}

func (HeuristicTokenCounter) CountTokens(_ context.Context, text string) (int, error) {
	n := len(text) / 4
	if n < 1 && len(text) > 0 {
		n = 1
	}
	return n, nil
}

// GeminiTokenCounter asks the model for exact counts. Slower but precise;
// enabled with EXACT_TOKEN_COUNTS.
type GeminiTokenCounter struct {
	Client *GeminiClient
}

func (c GeminiTokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	return c.Client.CountTokens(ctx, text)
}
