package loader_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/NuranDp/vscode-solution-explorer/pkg/loader"
)

func BenchmarkLoadChildren(b *testing.B) {
	for _, size := range []int{100, 500, 1000, 5000} {
		b.Run(fmt.Sprintf("entries=%d", size), func(b *testing.B) {
			dir := b.TempDir()
			slnPath := filepath.Join(dir, "app.sln")
			if err := os.WriteFile(slnPath, nil, 0644); err != nil {
				b.Fatalf("write solution file: %v", err)
			}
			for i := 0; i < size; i++ {
				path := filepath.Join(dir, fmt.Sprintf("file%04d.cs", i))
				if err := os.WriteFile(path, nil, 0644); err != nil {
					b.Fatalf("write entry: %v", err)
				}
			}

			factory := loader.New(loader.Options{})
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				root, err := factory.CreateRoot(ctx, slnPath, "")
				if err != nil {
					b.Fatalf("create root: %v", err)
				}
				children, err := root.GetChildren(ctx)
				if err != nil {
					b.Fatalf("load children: %v", err)
				}
				if len(children) != size {
					b.Fatalf("unexpected child count: got=%d want=%d", len(children), size)
				}
			}
		})
	}
}
