package utils

import (
	"runtime"
	"sync"
)

// Workers 规范化并发数，非正数时使用全部 CPU
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// Partitions 返回 ParallelParts 对 size 个元素使用的分区数
func Partitions(size, workers int) int {
	workers = Workers(workers)
	if size < workers*2 {
		return 1
	}
	return workers
}

// ParallelParts 将 [0, size) 切分为连续分区并发处理，part 为分区编号
func ParallelParts(size, workers int, fn func(part, start, end int)) {
	parts := Partitions(size, workers)
	if parts == 1 {
		fn(0, 0, size)
		return
	}

	partSize := size / parts

	var wg sync.WaitGroup
	wg.Add(parts)
	for i := 0; i < parts; i++ {
		start := i * partSize
		end := start + partSize
		if i == parts-1 {
			end = size
		}
		go func(part, start, end int) {
			defer wg.Done()
			fn(part, start, end)
		}(i, start, end)
	}
	wg.Wait()
}

// Parallel 与 ParallelParts 相同，但不关心分区编号
func Parallel(size, workers int, fn func(start, end int)) {
	ParallelParts(size, workers, func(_, start, end int) {
		fn(start, end)
	})
}
