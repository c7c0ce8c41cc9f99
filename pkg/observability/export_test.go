package observability

// SelectSampler exposes sampler selection to external tests.
var SelectSampler = selectSampler
