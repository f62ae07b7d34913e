/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/alejoacosta74/shrimpy-stream/cmd"

func main() {
	cmd.Execute()
}
