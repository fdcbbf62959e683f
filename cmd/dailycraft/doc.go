// Command dailycraft runs the diary generation daemon and offers one-shot
// commands for generating diaries, extracting screenshot text, browsing the
// archive and checking the environment.
package main
