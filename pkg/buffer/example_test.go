package buffer_test

import (
	"fmt"

	"github.com/tristan-jl/replay-memory/pkg/buffer"
)

func ExampleCircularBuffer() {
	memory, err := buffer.NewCircularBuffer[int](5, buffer.WithName[int]("ReplayMemory"))
	if err != nil {
		panic(err)
	}

	for i := 0; i < 6; i++ {
		memory.Push(i)
	}

	fmt.Println(memory)
	fmt.Println(memory.Len(), memory.IsFull())

	_, err = memory.Get(5)
	fmt.Println(err != nil)
	// Output:
	// ReplayMemory([5, 1, 2, 3, 4])
	// 5 true
	// true
}

func ExampleCircularBuffer_Sample() {
	memory, _ := buffer.NewCircularBuffer[string](4, buffer.WithSeed[string](42))
	memory.PushItems("a", "b")

	// Asking for more than is stored returns everything, in random order.
	fmt.Println(len(memory.Sample(10)))
	// Output: 2
}
