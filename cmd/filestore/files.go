package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shyim/filestore/internal/metadata"
	"github.com/shyim/filestore/internal/storage"
)

var (
	poolName string

	uploadDir         string
	uploadCompress    bool
	uploadMetadata    bool
	uploadVersion     string
	uploadDescription string

	downloadTo         string
	downloadDecompress bool

	findName string
	findExt  string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload local files into a pool directory",
	Long: `Upload local files into a pool directory. Several files are uploaded as one
batch: when any of them is rejected, nothing is written.

Examples:
  filestore upload report.pdf --dir /docs
  filestore upload *.log --dir /logs --compress
  filestore upload invoice.pdf --metadata --version 2 --description "January"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var downloadCmd = &cobra.Command{
	Use:   "download <path>...",
	Short: "Download artifacts into a local directory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDownload,
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create an empty directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runMkdir,
}

var findCmd = &cobra.Command{
	Use:     "find",
	Aliases: []string{"ls"},
	Short:   "List artifacts, optionally filtered by name or extension",
	Args:    cobra.NoArgs,
	RunE:    runFind,
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Delete artifacts and their metadata",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

var metaCmd = &cobra.Command{
	Use:   "meta <path>",
	Short: "Print the metadata stored with an artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runMeta,
}

func init() {
	for _, cmd := range []*cobra.Command{uploadCmd, downloadCmd, mkdirCmd, findCmd, rmCmd, metaCmd} {
		cmd.Flags().StringVarP(&poolName, "pool", "p", "", "Storage pool (default pool when empty)")
	}

	uploadCmd.Flags().StringVarP(&uploadDir, "dir", "d", "/", "Destination directory in the pool")
	uploadCmd.Flags().BoolVar(&uploadCompress, "compress", false, "Store each file as a single-entry archive")
	uploadCmd.Flags().BoolVar(&uploadMetadata, "metadata", false, "Record metadata sniffed from each file")
	uploadCmd.Flags().StringVar(&uploadVersion, "version", "", "Version recorded in the metadata (implies --metadata)")
	uploadCmd.Flags().StringVar(&uploadDescription, "description", "", "Description recorded in the metadata (implies --metadata)")

	downloadCmd.Flags().StringVarP(&downloadTo, "to", "o", ".", "Local target directory")
	downloadCmd.Flags().BoolVar(&downloadDecompress, "decompress", false, "Expand archive artifacts into the target directory")

	findCmd.Flags().StringVar(&findName, "name", "", "Exact file name to match")
	findCmd.Flags().StringVar(&findExt, "ext", "", "File extension to match (e.g. .pdf)")
	findCmd.MarkFlagsMutuallyExclusive("name", "ext")
}

func runUpload(cmd *cobra.Command, args []string) error {
	withMetadata := uploadMetadata || uploadVersion != "" || uploadDescription != ""

	return withPool(cmd.Context(), poolName, func(backend storage.Backend) error {
		ctx := cmd.Context()

		files := make([]storage.File, 0, len(args))
		for _, src := range args {
			f := storage.File{Path: src}
			if withMetadata {
				md, err := describe(src)
				if err != nil {
					return err
				}
				f.Metadata = &md
			}
			files = append(files, f)
		}

		switch {
		case uploadCompress:
			for _, f := range files {
				if err := backend.UploadCompressed(ctx, f.Path, uploadDir, f.Metadata); err != nil {
					return err
				}
			}
		case len(files) == 1 && files[0].Metadata != nil:
			if err := backend.UploadWithMetadata(ctx, files[0].Path, uploadDir, files[0].Metadata); err != nil {
				return err
			}
		case len(files) == 1:
			if err := backend.Upload(ctx, files[0].Path, uploadDir); err != nil {
				return err
			}
		case withMetadata:
			if err := backend.UploadCollectionWithMetadata(ctx, files, uploadDir); err != nil {
				return err
			}
		default:
			if err := backend.UploadCollection(ctx, args, uploadDir); err != nil {
				return err
			}
		}

		fmt.Printf("Uploaded %d file(s) to %s:%s\n", len(files), backend.Key(), uploadDir)
		return nil
	})
}

func describe(src string) (metadata.FileMetadata, error) {
	b, err := metadata.FromFile(src)
	if err != nil {
		return metadata.FileMetadata{}, err
	}
	return b.
		Version(uploadVersion).
		Description(uploadDescription).
		SaveDate(time.Now()).
		Build(), nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	return withPool(cmd.Context(), poolName, func(backend storage.Backend) error {
		ctx := cmd.Context()

		if downloadDecompress {
			for _, p := range args {
				if err := backend.DownloadDecompressed(ctx, p, downloadTo); err != nil {
					return err
				}
			}
		} else if len(args) == 1 {
			if err := backend.Download(ctx, args[0], downloadTo); err != nil {
				return err
			}
		} else if err := backend.DownloadCollection(ctx, args, downloadTo); err != nil {
			return err
		}

		fmt.Printf("Downloaded %d artifact(s) to %s\n", len(args), downloadTo)
		return nil
	})
}

func runMkdir(cmd *cobra.Command, args []string) error {
	return withPool(cmd.Context(), poolName, func(backend storage.Backend) error {
		if err := backend.CreateDirectory(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Directory created: %s\n", args[0])
		return nil
	})
}

func runFind(cmd *cobra.Command, args []string) error {
	return withPool(cmd.Context(), poolName, func(backend storage.Backend) error {
		var (
			objects []storage.Object
			err     error
		)
		switch {
		case findName != "":
			objects, err = backend.FindByName(cmd.Context(), findName)
		case findExt != "":
			objects, err = backend.FindByExtension(cmd.Context(), findExt)
		default:
			objects, err = backend.FindAll(cmd.Context())
		}
		if err != nil {
			return err
		}

		if len(objects) == 0 {
			fmt.Printf("No files found in %s\n", backend.Key())
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PATH\tSIZE\tDATE")
		_, _ = fmt.Fprintln(w, "----\t----\t----")
		for _, obj := range objects {
			date := obj.LastModified.Format("2006-01-02 15:04:05")
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", obj.Key, formatSize(obj.Size), date)
		}
		_ = w.Flush()

		fmt.Printf("\nTotal: %d file(s)\n", len(objects))
		return nil
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	return withPool(cmd.Context(), poolName, func(backend storage.Backend) error {
		for _, p := range args {
			if err := backend.Delete(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Printf("Deleted: %s\n", p)
		}
		return nil
	})
}

func runMeta(cmd *cobra.Command, args []string) error {
	return withPool(cmd.Context(), poolName, func(backend storage.Backend) error {
		md, err := backend.Metadata(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		data, err := metadata.Marshal(md)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	})
}

// formatSize formats bytes into human-readable format
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
