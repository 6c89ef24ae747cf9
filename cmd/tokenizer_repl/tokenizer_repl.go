package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"k8s.io/klog/v2"

	"github.com/wbrown/pretrain_data/tokenizer"
)

// A REPL for checking how a tokenizer and vocabulary encode corpus lines.

func main() {
	klog.InitFlags(nil)
	var spec tokenizer.Spec
	flag.StringVar(&spec.Tokenizer, "tokenizer", "wordpiece",
		"tokenizer [space, char, wordpiece, sentencepiece, bpe:<id>]")
	flag.StringVar(&spec.VocabPath, "vocab", "", "vocabulary file")
	flag.StringVar(&spec.ModelPath, "spm_model", "", "sentencepiece model")
	flag.BoolVar(&spec.LowerCase, "lower_case", true, "lower-case input")
	flag.Parse()

	enc, err := tokenizer.NewEncoder(spec)
	if err != nil {
		klog.Fatal(err)
	}
	dec, _ := enc.(tokenizer.Decoder)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print(">>> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			klog.Fatal(err)
		}
		input = strings.TrimRight(input, "\r\n")

		ids := enc.Encode(input)
		fmt.Printf("%v\n", ids)
		if dec != nil {
			for _, id := range ids {
				fmt.Printf("|%s", dec.Decode([]int{id}))
			}
			fmt.Printf("\n")
		}
	}
}
