// Command gallery-upload submits one image to the gallery upload endpoint and
// prints the public URL.
//
//	gallery-upload -endpoint http://localhost:8080/api/upload -name sunset.png ./IMG_0001.png
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/artgallery/service/internal/auth"
	"github.com/artgallery/service/internal/client"
)

func main() {
	_ = godotenv.Load()

	endpoint := flag.String("endpoint", envOr("GALLERY_UPLOAD_URL", "http://localhost:8080/api/upload"), "upload endpoint URL")
	name := flag.String("name", "", "store the file under this name")
	token := flag.String("token", os.Getenv("GALLERY_UPLOAD_TOKEN"), "bearer token")
	timeout := flag.Duration("timeout", 2*time.Minute, "request timeout")
	verbose := flag.Bool("v", false, "print state changes")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	// The owner can mint a short-lived token from the server's secret.
	if *token == "" {
		if secret := os.Getenv("UPLOAD_JWT_SECRET"); secret != "" {
			t, err := auth.Issue(secret, "gallery-upload", 10*time.Minute)
			if err != nil {
				fmt.Fprintln(os.Stderr, "token:", err)
				os.Exit(1)
			}
			*token = t
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	w := client.NewWidget(client.NewUploader(*endpoint, client.WithToken(*token)), nil)
	if *verbose {
		w.OnChange(func(s client.Snapshot) {
			fmt.Fprintln(os.Stderr, "state:", s.State)
		})
	}

	f := client.FileFromPath(flag.Arg(0))
	f.StoreAs = *name
	w.Select(f)

	url, err := w.Submit(ctx)
	if err != nil {
		msg := w.Snapshot().Message
		if msg == "" {
			msg = err.Error()
		}
		fmt.Fprintln(os.Stderr, "upload failed:", msg)
		os.Exit(1)
	}
	fmt.Println(url)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
