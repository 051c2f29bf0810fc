package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"musicbox/storage"

	"github.com/spf13/cobra"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "列出媒体存储中的文件",
	Long:  `连接配置的媒体存储（本地目录或MinIO存储桶），列出已上传的音频文件及其大小。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if c, ok := store.(io.Closer); ok {
			defer c.Close()
		}

		files, err := store.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
		var total int64
		for _, f := range files {
			total += f.Size
			fmt.Fprintf(w, "%s\t%d\t%s\n", f.Name, f.Size, f.ModTime.Format("2006-01-02 15:04:05"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n共 %d 个文件, %d 字节\n", len(files), total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mediaCmd)

	mediaCmd.Example = `  # 列出本地媒体目录
  musicbox media

  # 列出MinIO存储桶
  MEDIA_BACKEND=minio musicbox media`
}
