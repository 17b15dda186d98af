package godispatch

//Partition split items into contiguous, non-overlapping batches of at most
//batchSize items each, covering the whole list in source order. The result
//is a pure function of len(items) and batchSize; an empty list yields an
//empty batch slice.
func Partition(items []string, batchSize int) ([]Batch, DispatchError) {
	if batchSize <= 0 {
		return nil, NewDispatchError(ErrCodeGeneral, "batch size must be positive, got:%v", batchSize)
	}
	batches := make([]Batch, 0, (len(items)+batchSize-1)/batchSize)
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, Batch{
			Start: start,
			End:   end,
			Items: items[start:end],
		})
	}
	return batches, nil
}
