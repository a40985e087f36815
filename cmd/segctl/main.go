// segctl 命令行客户端：提交图片和提示词，解码返回的掩码并输出摘要
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

type promptList []string

func (p *promptList) String() string { return strings.Join(*p, ",") }

func (p *promptList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	var prompts promptList
	server := flag.String("server", "http://localhost:8080", "服务地址")
	imagePath := flag.String("image", "", "图片路径")
	flag.Var(&prompts, "prompt", "提示词，可重复；everything_prompt 返回全部区域")
	box := flag.Float64("box", -1, "最低置信度，负数使用服务端默认值")
	text := flag.Float64("text", -1, "文本匹配阈值，负数使用服务端默认值")
	output := flag.String("o", "table", "输出格式: table|yaml|json")
	maskDir := flag.String("masks", "", "将掩码保存为 PNG 的目录")
	timeout := flag.Duration("timeout", 2*time.Minute, "请求超时")
	flag.Parse()

	if *imagePath == "" || len(prompts) == 0 {
		fmt.Fprintln(os.Stderr, "usage: segctl -image photo.jpg -prompt \"red car\" [-prompt ...]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := &Client{BaseURL: strings.TrimRight(*server, "/")}
	opts := RequestOptions{}
	if *box >= 0 {
		opts.Box = box
	}
	if *text >= 0 {
		opts.Text = text
	}

	report, err := client.PredictFile(ctx, *imagePath, prompts, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "segctl: %v\n", err)
		os.Exit(1)
	}

	if *maskDir != "" {
		if err := report.SaveMasks(*maskDir); err != nil {
			fmt.Fprintf(os.Stderr, "segctl: %v\n", err)
			os.Exit(1)
		}
	}

	if err := report.Write(os.Stdout, *output); err != nil {
		fmt.Fprintf(os.Stderr, "segctl: %v\n", err)
		os.Exit(1)
	}
}
