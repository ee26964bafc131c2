package telegram

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Free-text intent matching. A message is only interpreted when it passes
// the attention check ("hey tally" and friends); the first command whose
// keyword logic matches wins, so order below matters.

// wordLogic is OR of (AND of (OR of keywords)): the message matches when
// any outer group has every inner group satisfied by at least one keyword.
// All keywords must be lower case.
type wordLogic [][][]string

func (l wordLogic) matches(msg string) bool {
	msg = strings.ToLower(msg)
	for _, group := range l {
		if andOrMatch(msg, group) {
			return true
		}
	}
	return false
}

func andOrMatch(msg string, group [][]string) bool {
	for _, orList := range group {
		found := false
		for _, kw := range orList {
			if strings.Contains(msg, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

var attentionLogic = wordLogic{
	{{"hey", "yo", "hello", "hi", "sup"}, {"tally"}},
	{{"so tally", "tally,"}},
}

// isCallingBot reports whether the message addresses the bot by name.
func isCallingBot(msg string) bool {
	return attentionLogic.matches(msg)
}

var commandLogic = []struct {
	command string
	logic   wordLogic
}{
	{"trip", wordLogic{
		{{"going"}},
		{{"new", "go"}, {"trip", "vacation", "holiday"}},
	}},
	{"bill", wordLogic{
		{{"paid", "paying"}, {"for"}},
	}},
	{"settle", wordLogic{
		{{"settle", "结账"}},
		{{"final", "total"}, {"amount"}},
	}},
	{"receipts", wordLogic{
		{{"receipts", "breakdown"}},
		{{"break"}, {"down"}},
	}},
	{"show", wordLogic{
		{{"show"}},
		{{"current"}, {"trip"}},
	}},
	{"help", wordLogic{
		{{"help"}},
		{{"what"}, {"command", "commands"}},
		{{"how"}},
	}},
	{"intro", wordLogic{
		{{"about", "where", "who"}, {"yourself", "you", "u"}},
	}},
}

// determineCommand maps free text to a command name.
func determineCommand(msg string) (string, bool) {
	for _, c := range commandLogic {
		if c.logic.matches(msg) {
			return c.command, true
		}
	}
	return "", false
}

var (
	tripNameRe = regexp.MustCompile(`to (.*)`)
	billRe     = regexp.MustCompile(`(\d+(?:\.\d+)?) for (.*)`)
)

// parseTripName extracts a trip title from a "we are going to X" sentence.
func parseTripName(msg string) (string, error) {
	m := tripNameRe.FindStringSubmatch(msg)
	if m == nil {
		return "", errors.New("I couldnt find a possible trip name in there")
	}
	return strings.TrimSpace(m[1]), nil
}

// parseBill extracts an amount and description from an "I paid X for Y"
// sentence.
func parseBill(msg string) (float64, string, error) {
	m := billRe.FindStringSubmatch(msg)
	if m == nil {
		return 0, "", errors.New("I cant find a money value in there...")
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", fmt.Errorf("%s isnt really a number to represent money", m[1])
	}
	return amount, strings.TrimSpace(m[2]), nil
}
